// Package embedder turns chunk text into vector embeddings.
//
// Providers implement Embedder and make a single attempt per call. Jina and
// OpenAI share HTTPProvider; LocalProvider hashes tokens offline and needs
// no credentials.
//
// # Provider Selection
//
// NewFromEnv picks a provider in this order:
//
//  1. AUDEN_EMBEDDING_PROVIDER, if set
//  2. JINA_API_KEY present → Jina AI
//  3. OPENAI_API_KEY present → OpenAI
//  4. otherwise the local provider
//
// # Pipeline
//
// Pipeline wraps an Embedder with a bounded queue and a fixed worker pool:
//
//	p := embedder.NewPipeline(emb, embedder.DefaultPipelineConfig(), limiter, logger)
//	run := p.Start(ctx)
//	go func() {
//	    defer run.Close()
//	    for _, c := range chunks {
//	        _ = run.Submit(ctx, embedder.Item{ID: c.ID, Text: c.EmbedText})
//	    }
//	}()
//	for res := range run.Results() {
//	    // res.Err != nil means the chunk failed permanently
//	}
//
// Submit blocks while the queue is full. Workers drain up to BatchSize
// queued items per call. Transient failures (timeouts, network errors,
// 429 and 5xx responses) are retried with exponential backoff; anything
// else is permanent. A batch rejected permanently is retried one item at a
// time so only the offending item fails. Exhausting the retry budget is
// permanent for the items involved.
//
// # Caching
//
// Providers share an LRU Cache keyed by model and content hash, so
// repeated texts within a process cost no capability calls.
package embedder
