// Package substrait builds, checks and exchanges relational query plans.
//
// A plan is a tree of relations (scans, filters, projections, joins,
// aggregates, set operations and extension relations) whose expressions
// reference typed fields and functions declared in YAML extension
// libraries. Every node is validated and typed on construction, so a plan
// that exists is well formed.
//
// The root package ties the pieces together:
//   - Codec marshals plans to MessagePack envelopes, optionally compressed
//     with ZStandard, and decodes them back with full integrity checks
//   - NewServer registers a gRPC plan exchange service on an existing
//     grpc.Server
//   - ServerOptions supplies bearer token authentication interceptors
//
// # Building a plan
//
//	c, err := substrait.NewCodec(substrait.Config{})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	schema, _ := types.NewNamedStruct(
//	    []string{"id", "region"},
//	    types.R.Struct(types.R.I64(), types.R.Str()),
//	)
//	orders, _ := relation.NewNamedScan([]string{"orders"}, schema)
//	cond, _ := expr.ResolveScalar(c.Registry(), "equal",
//	    must(expr.NewFieldRef(orders.DerivedRecordType(), 1)),
//	    expr.NewString("EU", false))
//	filter, _ := relation.NewFilter(orders, cond)
//	root, _ := plan.NewRoot(filter, []string{"id", "region"})
//	p, _ := plan.New([]plan.Rel{plan.RootOf(root)}, nil)
//
//	data, err := c.Marshal(p)
//
// # Serving plans
//
//	config := substrait.ServerConfig{
//	    Auth: auth.StaticTokens(map[string]string{"secret": "ops"}),
//	}
//	grpcServer := grpc.NewServer(substrait.ServerOptions(config)...)
//	codec, err := substrait.NewServer(grpcServer, config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer codec.Close()
//	grpcServer.Serve(lis)
//
// Clients call the service through exchange.Client, which selects the
// MessagePack content subtype.
//
// # Errors
//
// Failures are classified by the sentinels in package errdefs and can be
// tested with errors.Is:
//   - ErrConstruction: a node was built from invalid parts
//   - ErrResolution: no function signature matched the arguments
//   - ErrDecodeIntegrity: a serialized plan is malformed or inconsistent
//   - ErrUnsupported: a value has no representation in the target form
//   - ErrUnhandledEnhancement: an enhancement payload had no decoder
//
// # Thread Safety
//
// Plans, relations, expressions and types are immutable once built and may
// be shared across goroutines. Codec, Collection and Registry are safe for
// concurrent use.
package substrait
