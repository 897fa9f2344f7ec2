// Package querygate provides controlled SQL execution over managed database
// connections, exposed through two transports: a single-shot HTTP API and a
// streaming MCP (Model Context Protocol) channel.
//
// Every statement passes through the same pipeline regardless of transport:
// bearer-token authentication, a leading-keyword statement classifier, a
// per-database permission grid (default deny), execution on a lazily opened
// connection pool, and an audit entry with sanitized request and response
// payloads.
//
// Connections are stored with their credentials encrypted under a master key
// (AES-256-GCM with an Argon2id-derived key). The master key can be rotated
// online; rotation is journaled so an interrupted rotation resumes at the
// next startup.
//
// # Library Usage
//
//	st, err := store.NewFileStore(".querygate")
//	if err != nil {
//		log.Fatal(err)
//	}
//	s, err := querygate.New(ctx, querygate.Config{
//		Pool: querygate.PoolConfig{MaxConns: 10},
//	}, st, querygate.NewTokenAuthenticator(tokens), logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer s.Close(ctx)
//
//	// Single-shot HTTP channel
//	http.ListenAndServe(":8080", s.HTTPHandler())
//
//	// Or register as MCP tools
//	querygate.RegisterMCPTools(mcpServer, s)
//
// # Permission Model
//
// Each connection carries a set of databases, and each database carries an
// eight-flag permission grid (select, insert, update, delete, create, alter,
// drop, truncate). A statement runs only when its classified kind maps to a
// granted flag; statements the classifier cannot recognize are denied. The
// classifier inspects the leading keyword only, so multi-statement payloads
// are gated by their first statement.
package querygate
