// Package preflight validates the environment before indexing or
// answering queries.
//
// The local checks cover disk space, write permissions, and file
// descriptor limits. With an Ollama endpoint configured the checker
// also probes the server and verifies the embedding and generation
// models are pulled; those checks only warn, since retrieval degrades
// gracefully without them.
package preflight
