package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDict = `数据 100 n
数据库 50 n
索引 80 n
库 10 n
北京 200 ns
大学 150 n
北京大学 60 nt
`

func newTestTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	dict, err := NewDictionary(strings.NewReader(testDict))
	require.NoError(t, err)
	return New(dict)
}

func TestNewDictionary(t *testing.T) {
	dict, err := NewDictionary(strings.NewReader(testDict + "broken\n坏 x n\n"))
	require.NoError(t, err)

	assert.Equal(t, 7, dict.Len())
	assert.Equal(t, 50, dict.Freq("数据库"))
	assert.Equal(t, "ns", dict.Tag("北京"))
	assert.Equal(t, 0, dict.Freq("坏"))
	assert.True(t, dict.HasPrefix("北京大"))
	assert.False(t, dict.Contains("北京大"))
}

func TestTokenize_MaxProbability(t *testing.T) {
	tk := newTestTokenizer(t)

	assert.Equal(t, []string{"数据库", "索引"}, tk.Tokenize("数据库索引"))
	assert.Equal(t, []string{"北京大学"}, tk.Tokenize("北京大学"))
}

func TestTokenize_MixedScripts(t *testing.T) {
	tk := New(nil)

	tokens := tk.Tokenize("Hello, 世界！ＡＢＣ")
	assert.Equal(t, []string{"hello", "世", "界", "abc"}, tokens)

	tokens = tk.Tokenize("abc世界")
	assert.Equal(t, []string{"abc", "世", "界"}, tokens)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "abc123", Normalize("ＡＢＣ１２３"))
	assert.Equal(t, "资料", Normalize("資料"))
}

func TestFineGrained(t *testing.T) {
	tk := newTestTokenizer(t)

	tests := []struct {
		name   string
		tokens []string
		want   []string
	}{
		{"splits compound", []string{"数据库", "索引"}, []string{"数据", "库", "索引"}},
		{"splits proper noun", []string{"北京大学"}, []string{"北京", "大学"}},
		{"keeps numeric", []string{"2024", "数据库"}, []string{"2024", "数据", "库"}},
		{"mostly latin splits on slash", []string{"tcp/ip", "http", "dns", "udp", "ftp", "数据"}, []string{"tcp", "ip", "http", "dns", "udp", "ftp", "数据"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tk.FineGrained(tt.tokens))
		})
	}
}

func TestFineGrained_UnknownKeptWhole(t *testing.T) {
	tk := New(nil)
	assert.Equal(t, []string{"不认识"}, tk.FineGrained([]string{"不认识"}))
}

func TestNumTokens(t *testing.T) {
	tk := newTestTokenizer(t)
	assert.Equal(t, 3, tk.NumTokens("数据库索引 search"))
	assert.Equal(t, 0, tk.NumTokens("，。！"))
}

func TestIsChinese(t *testing.T) {
	assert.True(t, IsChinese("abc中"))
	assert.False(t, IsChinese("abc"))
}
