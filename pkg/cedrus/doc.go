// Package cedrus provides an embedded Go client for the cedrus vector
// store, backed by Redis with the search module. It wires the same engine
// the HTTP server runs, without the HTTP layer in between.
//
//	client, err := cedrus.New(ctx,
//	    cedrus.WithRedis("localhost:6379", ""),
//	    cedrus.WithDimensions(1536),
//	    cedrus.WithFields("category", "year:numeric"),
//	    cedrus.WithEmbedder(myEmbedder),
//	)
//	if err != nil { ... }
//	defer client.Close()
//
//	_, _ = client.EnsureSchema(ctx)
//	ids, _ := client.AddDocuments(ctx, []cedrus.Document{
//	    {ID: "doc-1", Content: "hello", Metadata: map[string]any{"category": "greetings"}},
//	})
//
//	f, _ := cedrus.Eq("category", "greetings")
//	results, _ := client.Search(ctx, cedrus.SearchRequest{Query: "hi", TopK: 4, Filter: f})
package cedrus
