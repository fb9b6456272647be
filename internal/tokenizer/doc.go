// Package tokenizer segments mixed Chinese/English text into tokens.
//
// Text is normalized (full-width folded to half-width, lowercased,
// traditional Chinese converted to simplified) before segmentation.
// Latin runs are split on whitespace; CJK runs are segmented by
// maximum-probability search over a frequency dictionary:
//
//	dict, err := tokenizer.LoadDictionary("res/huqie.txt")
//	if err != nil {
//	    return err
//	}
//	tk := tokenizer.New(dict)
//	tokens := tk.Tokenize("数据库索引 Vector Search")
//	fine := tk.FineGrained(tokens)
//
// The dictionary also supplies per-word frequency and part-of-speech tags
// consumed by term weighting.
package tokenizer
