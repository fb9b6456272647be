package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Op joins the clauses of a Group
type Op string

const (
	// OpShould joins clauses with whitespace, leaving the engine's default operator
	OpShould Op = " "
	OpOr     Op = " OR "
	OpAnd    Op = " AND "
)

// Expr is a node of a boolean full-text query
type Expr interface {
	// Render returns the node in query_string syntax
	Render() string
}

// Term is a single escaped token
type Term struct {
	Text  string
	Boost float64 // 0 means unboosted
}

// Render implements Expr
func (t Term) Render() string {
	return t.Text + boostSuffix(t.Boost)
}

// Phrase is a quoted word sequence with optional proximity slop
type Phrase struct {
	Words []string
	Slop  int
	Boost float64
}

// Render implements Expr
func (p Phrase) Render() string {
	var b strings.Builder
	b.WriteByte('"')
	b.WriteString(strings.Join(p.Words, " "))
	b.WriteByte('"')
	if p.Slop > 0 {
		b.WriteByte('~')
		b.WriteString(strconv.Itoa(p.Slop))
	}
	b.WriteString(boostSuffix(p.Boost))
	return b.String()
}

// Group is a parenthesized list of clauses
type Group struct {
	Op      Op
	Clauses []Expr
	Boost   float64
}

// Render implements Expr
func (g Group) Render() string {
	return "(" + g.inner() + ")" + boostSuffix(g.Boost)
}

func (g Group) inner() string {
	op := g.Op
	if op == "" {
		op = OpShould
	}
	parts := make([]string, 0, len(g.Clauses))
	for _, c := range g.Clauses {
		if c == nil {
			continue
		}
		if s := c.Render(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, string(op))
}

// boostSuffix formats a boost with at most four decimals
func boostSuffix(boost float64) string {
	if boost == 0 || boost == 1 {
		return ""
	}
	s := strconv.FormatFloat(boost, 'f', 4, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	return "^" + s
}

// MatchTextExpr is a full-text match request for the search engine
type MatchTextExpr struct {
	// Fields carry per-field boosts, e.g. "title_tks^10"
	Fields []string
	// Root is the query tree; its top-level clauses are rendered unparenthesized
	Root Expr
	TopN int
	// MinimumShouldMatch in engine syntax: "60%" or an absolute count
	MinimumShouldMatch string
	OriginalQuery      string
}

// MatchingText renders the query tree
func (m *MatchTextExpr) MatchingText() string {
	switch root := m.Root.(type) {
	case nil:
		return ""
	case Group:
		if root.Boost == 0 || root.Boost == 1 {
			return root.inner()
		}
	}
	return m.Root.Render()
}

type queryStringBody struct {
	Query struct {
		QueryString queryString `json:"query_string"`
	} `json:"query"`
	Size int `json:"size,omitempty"`
}

type queryString struct {
	Fields             []string `json:"fields"`
	Query              string   `json:"query"`
	MinimumShouldMatch string   `json:"minimum_should_match,omitempty"`
	Boost              float64  `json:"boost"`
}

// Body returns an Elasticsearch query_string request body
func (m *MatchTextExpr) Body() ([]byte, error) {
	var body queryStringBody
	body.Query.QueryString = queryString{
		Fields:             m.Fields,
		Query:              m.MatchingText(),
		MinimumShouldMatch: m.MinimumShouldMatch,
		Boost:              1,
	}
	body.Size = m.TopN

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query body: %w", err)
	}
	return data, nil
}

// percent renders a fraction in (0, 1] as a minimum_should_match percentage
func percent(frac float64) string {
	return strconv.Itoa(int(frac*100+0.5)) + "%"
}
