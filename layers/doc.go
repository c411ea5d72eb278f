// Package layers implements named, cacheable build layers and the reuse
// decision that lets repeated builds skip work whose inputs have not changed.
//
// A layer is a directory under the layers root plus a small metadata record
// and an ordered environment modification list, both persisted alongside the
// layer's files. On each build the Manager compares the metadata a layer says
// it wants against what a previous build persisted and decides to keep,
// update, or recreate the directory:
//
//	store, _ := layers.NewStore(layersDir)
//	manager := layers.NewManager(store, nil)
//
//	ctx := &layers.Context{AppDir: appDir, Env: env.FromEnviron(os.Environ())}
//	handled, err := manager.Handle(ctx, "ruby", installRubyLayer)
//
// Each handled layer reports its environment contribution as an env.LayerEnv;
// the Manager folds the build-scope view into ctx.Env so later layers observe
// earlier layers' changes, never the reverse.
//
// # Reuse decision
//
// A layer participates in caching only when its Types mark it Cache. For a
// cached layer with an existing directory the Manager loads the persisted
// metadata and compares it structurally against the layer's desired metadata.
// Equal metadata keeps the directory untouched; differing metadata runs the
// layer's Update operation when it has one, otherwise the directory is
// deleted and Create runs from scratch. Layers can refine the decision with
// an ExistingLayerStrategy hook, for example to recreate a cache whose
// directory belongs to a different application path even though the version
// matches.
//
// Persisted metadata that cannot be read back is treated as a cache miss,
// not an error: the layer is recreated.
//
// # Thread safety
//
// The Manager is not thread-safe. Layers execute strictly sequentially in
// the order the driver requests them; the environment produced by one layer
// is a hard input to the next.
package layers
