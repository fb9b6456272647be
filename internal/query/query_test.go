package query

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ragcore/internal/termweight"
	"github.com/dshills/ragcore/internal/tokenizer"
)

const testDict = `数据 300 n
数据库 120 n
索引 80 n
优化 200 v
北京 500 ns
大学 400 n
北京大学 1000 nt
`

type fakeSynonyms struct {
	version uint64
	table   map[string][]string
}

func (f *fakeSynonyms) Lookup(term string, topN int) []string {
	list := f.table[term]
	if len(list) > topN {
		list = list[:topN]
	}
	return append([]string(nil), list...)
}

func (f *fakeSynonyms) Version() uint64 { return f.version }

func newTestBuilder(t *testing.T, syns *fakeSynonyms) *Builder {
	t.Helper()
	dict, err := tokenizer.NewDictionary(strings.NewReader(testDict))
	require.NoError(t, err)
	dealer := termweight.NewDealer(tokenizer.New(dict), nil, nil)
	if syns == nil {
		return NewBuilder(dealer, nil)
	}
	return NewBuilder(dealer, syns)
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"term", Term{Text: "a", Boost: 0.25}, "a^0.25"},
		{"unboosted term", Term{Text: "a"}, "a"},
		{"rounded boost", Term{Text: "a", Boost: 0.123456}, "a^0.1235"},
		{"phrase with slop", Phrase{Words: []string{"a", "b"}, Slop: 4, Boost: 1.5}, `"a b"~4^1.5`},
		{"or group", Group{Op: OpOr, Clauses: []Expr{Term{Text: "a"}, Term{Text: "b"}}, Boost: 0.7}, "(a OR b)^0.7"},
		{"should group", Group{Clauses: []Expr{Term{Text: "a"}, Phrase{Words: []string{"b"}}}}, `(a "b")`},
		{"and group skips nil", Group{Op: OpAnd, Clauses: []Expr{Term{Text: "a"}, nil, Term{Text: "b"}}}, "(a AND b)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.expr.Render())
		})
	}
}

func TestMatchTextExpr_Body(t *testing.T) {
	m := &MatchTextExpr{
		Fields:             []string{"title_tks^10", "content_ltks"},
		Root:               Group{Op: OpShould, Clauses: []Expr{Term{Text: "a"}, Term{Text: "b", Boost: 2}}},
		TopN:               100,
		MinimumShouldMatch: "60%",
	}
	assert.Equal(t, "a b^2", m.MatchingText())

	data, err := m.Body()
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	qs := body["query"].(map[string]any)["query_string"].(map[string]any)
	assert.Equal(t, "a b^2", qs["query"])
	assert.Equal(t, "60%", qs["minimum_should_match"])
	assert.Equal(t, []any{"title_tks^10", "content_ltks"}, qs["fields"])
	assert.Equal(t, float64(100), body["size"])
}

func TestNormalizeQuestion(t *testing.T) {
	assert.Equal(t, "abc123 中文", AddSpaceBetweenEngZh("abc123中文"))
	assert.Equal(t, "中文 abc", AddSpaceBetweenEngZh("中文abc"))
	assert.Equal(t, "gpu 资料 ok ", NormalizeQuestion("ＧＰＵ資料，ok？"))
}

func TestRmWWW(t *testing.T) {
	assert.Equal(t, "数据库索引优化", RmWWW("数据库索引怎么优化"))
	assert.Equal(t, " tune vector indexes", RmWWW("how to tune vector indexes"))
	assert.Equal(t, "什么", RmWWW("什么"), "empty result reverts to input")
}

func TestIsChinese(t *testing.T) {
	assert.True(t, IsChinese("vector search db"))
	assert.True(t, IsChinese("数据库 索引 优化 方案 plan"))
	assert.False(t, IsChinese("tune vector database indexes quickly"))
}

func TestSubSpecialChar(t *testing.T) {
	assert.Equal(t, `a\:b \(c\) \"d\" e\-f`, SubSpecialChar(`a:b (c) "d" e-f`))
}

func TestQuestion_Empty(t *testing.T) {
	b := newTestBuilder(t, nil)
	_, _, err := b.Question("   ", 0.6)
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestQuestion_Latin(t *testing.T) {
	b := newTestBuilder(t, nil)

	expr, keywords, err := b.Question("How to tune vector database indexes quickly", 0.6)
	require.NoError(t, err)

	assert.Equal(t, []string{"tune", "vector", "database", "indexes", "quickly"}, keywords)
	text := expr.MatchingText()
	assert.Contains(t, text, "(tune^")
	assert.Contains(t, text, `"tune vector"^`)
	assert.Contains(t, text, `"indexes quickly"^`)
	assert.Empty(t, expr.MinimumShouldMatch)
	assert.Equal(t, DefaultFields, expr.Fields)
	assert.Equal(t, DefaultTopN, expr.TopN)
	assert.Equal(t, "How to tune vector database indexes quickly", expr.OriginalQuery)
}

func TestQuestion_Chinese(t *testing.T) {
	syns := &fakeSynonyms{version: 1, table: map[string][]string{
		"数据库": {"database", "db"},
	}}
	b := newTestBuilder(t, syns)

	expr, keywords, err := b.Question("数据库索引怎么优化？", 0.6)
	require.NoError(t, err)

	assert.Equal(t, []string{"数据库索引优化", "数据库", "database", "db", "索引", "优化"}, keywords)
	assert.Equal(t, "60%", expr.MinimumShouldMatch)

	text := expr.MatchingText()
	assert.Contains(t, text, "(数据库 OR (database db)^0.7)^")
	assert.Contains(t, text, `"数据库 索引 优化"~4^1.5`)
}

func TestQuestion_SubTerms(t *testing.T) {
	b := newTestBuilder(t, nil)

	expr, keywords, err := b.Question("北京大学", 0.5)
	require.NoError(t, err)

	assert.Equal(t, "50%", expr.MinimumShouldMatch)
	assert.Equal(t, []string{"北京大学", "北京", "大学"}, keywords)
	text := expr.MatchingText()
	assert.Contains(t, text, `"北京 大学"~2^0.5`)
	assert.NotContains(t, text, "~4", "a single term gets no proximity phrase")
}

func TestQuestion_AlnumMultiTerm(t *testing.T) {
	b := newTestBuilder(t, nil)

	expr, _, err := b.Question("tcp ip", 0.6)
	require.NoError(t, err)
	assert.Contains(t, expr.MatchingText(), `("tcp ip" OR (tcp AND ip))`)
}

func TestQuestion_FallsBackToText(t *testing.T) {
	b := newTestBuilder(t, nil)

	for _, q := range []string{"的", "？？？"} {
		expr, _, err := b.Question(q, 0.6)
		require.NoError(t, err)
		assert.NotEmpty(t, expr.MatchingText(), "question %q", q)
	}

	expr, keywords, err := b.Question("的", 0.6)
	require.NoError(t, err)
	assert.Equal(t, "的", expr.MatchingText())
	assert.Equal(t, []string{"的"}, keywords)
}

func TestQuestion_KeywordLimit(t *testing.T) {
	b := newTestBuilder(t, nil)

	words := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		words = append(words, "数据库"+strings.Repeat("索引", i%3+1))
	}
	_, keywords, err := b.Question(strings.Join(words, " "), 0.6)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(keywords), maxKeywords)
}

func TestQuestion_CacheFollowsSynonymVersion(t *testing.T) {
	syns := &fakeSynonyms{version: 1, table: map[string][]string{}}
	b := newTestBuilder(t, syns)

	first, _, err := b.Question("数据库", 0.6)
	require.NoError(t, err)
	assert.NotContains(t, first.MatchingText(), "database")

	syns.table["数据库"] = []string{"database"}
	cached, _, err := b.Question("数据库", 0.6)
	require.NoError(t, err)
	assert.Equal(t, first.MatchingText(), cached.MatchingText(), "same snapshot version is served from cache")

	syns.version = 2
	fresh, _, err := b.Question("数据库", 0.6)
	require.NoError(t, err)
	assert.Contains(t, fresh.MatchingText(), "database")
}

func TestParagraph(t *testing.T) {
	syns := &fakeSynonyms{table: map[string][]string{"索引": {"index"}}}
	b := newTestBuilder(t, syns)

	expr := b.Paragraph([]string{"数据库", "索引", "优化"}, []string{"向量检索", " "}, 2)
	require.NotNil(t, expr)

	text := expr.MatchingText()
	assert.True(t, strings.HasPrefix(text, `"向量检索"`))
	assert.Contains(t, text, "(索引 OR (index)^0.2)^")
	assert.Empty(t, expr.MinimumShouldMatch)

	assert.Nil(t, b.Paragraph(nil, nil, 10))
}
