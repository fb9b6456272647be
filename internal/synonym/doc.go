// Package synonym provides the term -> synonym lookup used for query expansion.
//
// Lookups read an immutable Snapshot through an atomic pointer and never
// block. Once both a lookup-count threshold and an elapsed-time threshold
// have passed, the next lookup starts a single background refresh from the
// configured Source; a refresh that fails leaves the published snapshot in
// place.
//
//	seed, _ := synonym.LoadFile("res/synonym.json")
//	cache := synonym.NewCache(synonym.SourceFunc(store.LoadSynonyms),
//	    synonym.WithSnapshot(seed),
//	    synonym.WithLogger(logger))
//	syns := cache.Lookup("数据库", 8)
package synonym
