package stage

// Serial and Parallel are core composite stages, not domain adapters, so
// they register themselves into Default here rather than via a pkg/stages
// adapter's own init. Root is never looked up by name — it is the tree's
// entry point, constructed directly by internal/app — so it is not
// registered.
func init() {
	_ = Default.Register(SerialPluginName, func(id string) Stage {
		return NewSerial(id, Default, nil)
	}, "stage", "executor")

	_ = Default.Register(ParallelPluginName, func(id string) Stage {
		return NewParallel(id, Default, nil)
	}, "stage", "executor")
}
