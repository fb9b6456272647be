package query

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dshills/ragcore/internal/tokenizer"
)

var (
	engZhRes = []*regexp.Regexp{
		regexp.MustCompile(`([A-Za-z]+[0-9]*)([\x{4e00}-\x{9fa5}]+)`),
		regexp.MustCompile(`([A-Za-z])([\x{4e00}-\x{9fa5}]+)`),
		regexp.MustCompile(`([\x{4e00}-\x{9fa5}]+)([A-Za-z]+[0-9]*)`),
		regexp.MustCompile(`([\x{4e00}-\x{9fa5}]+)([A-Za-z])`),
	}

	punctRunRe = regexp.MustCompile("[ :|\r\n\t,，.。?？/`!！&^%()\\[\\]{}<>]+")

	wwwRes = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`(?i)是*(怎么办|什么样的|哪家|一下|那家|请问|啥样|咋样了|什么时候|何时|何地|何人|是否|是不是|多少|哪里|怎么|哪儿|怎么样|如何|哪些|是啥|啥是|啊|吗|呢|吧|咋|什么|有没有|呀|谁|哪位|哪个)是*`), ""},
		{regexp.MustCompile(`(?i)(^| )(what|who|how|which|where|why)('re|'s)? `), " "},
		{regexp.MustCompile(`(?i)(^| )('s|'re|is|are|were|was|do|does|did|don't|doesn't|didn't|has|have|be|there|you|me|your|my|mine|just|please|may|i|should|would|wouldn't|will|won't|done|go|for|with|so|the|a|an|by|i'm|it's|he's|she's|they|they're|you're|as|by|on|in|at|up|out|down|of|to|or|and|if) `), " "},
	}

	latinWordRe   = regexp.MustCompile(`^[a-zA-Z]+$`)
	specialCharRe = regexp.MustCompile(`([:{}/\[\]\-\*"\(\)\|\+~\^])`)
	codeLikeRe    = regexp.MustCompile(`^[0-9a-z\.\+#_\*-]+$`)
	subTermPunct  = regexp.MustCompile("[,\\./;'\\[\\]\\\\`~!@#$%\\^&\\*\\(\\)=\\+_<>\\?:\"\\{\\}\\|，。；‘’【】、！￥…（）—《》？：“”-]+")
)

// AddSpaceBetweenEngZh separates adjacent Latin and Chinese runs
func AddSpaceBetweenEngZh(text string) string {
	for _, re := range engZhRes {
		text = re.ReplaceAllString(text, "$1 $2")
	}
	return text
}

// NormalizeQuestion folds width and case, converts to simplified Chinese,
// spaces Latin/Chinese boundaries and collapses punctuation to single spaces.
func NormalizeQuestion(text string) string {
	text = AddSpaceBetweenEngZh(tokenizer.Normalize(text))
	return punctRunRe.ReplaceAllString(text, " ")
}

// RmWWW strips interrogatives and filler words. If nothing would remain
// the input is returned unchanged.
func RmWWW(text string) string {
	original := text
	for _, p := range wwwRes {
		text = p.re.ReplaceAllString(text, p.repl)
	}
	if strings.TrimSpace(text) == "" {
		return original
	}
	return text
}

// IsChinese classifies text as CJK-dominant. Three or fewer fields always
// count as CJK; otherwise at least 70% of fields must be non-Latin words.
func IsChinese(text string) bool {
	fields := strings.Fields(text)
	if len(fields) <= 3 {
		return true
	}
	var nonLatin int
	for _, f := range fields {
		if !latinWordRe.MatchString(f) {
			nonLatin++
		}
	}
	return float64(nonLatin)/float64(len(fields)) >= 0.7
}

// SubSpecialChar escapes query_string operator characters
func SubSpecialChar(text string) string {
	return specialCharRe.ReplaceAllString(text, `\$1`)
}

// needFineGrained reports whether a term is long enough, and not code-like,
// to be worth sub-segmenting
func needFineGrained(tk string) bool {
	if utf8.RuneCountInString(tk) < 4 {
		return false
	}
	return !codeLikeRe.MatchString(tk)
}
