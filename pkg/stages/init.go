package stages

import "inlook-corpus/internal/stage"

// init registers every domain adapter into the process-wide stage
// registry, the same self-registration pattern internal/stage/init.go
// uses for the core Serial/Parallel composites. Importing this package
// for its side effect (see cmd/corpusctl/main.go's blank import) is
// what makes a workflow document naming these plugins resolvable.
func init() {
	_ = stage.Default.Register(FileReaderPluginName, func(id string) stage.Stage {
		return NewFileReader(id, nil)
	}, "stage")

	_ = stage.Default.Register(AttributeAdderPluginName, func(id string) stage.Stage {
		return NewAttributeAdder(id, nil)
	}, "stage")

	_ = stage.Default.Register(SystemInfoTaggerPluginName, func(id string) stage.Stage {
		return NewSystemInfoTagger(id, nil)
	}, "stage")

	_ = stage.Default.Register(EnsureAttrPluginName, func(id string) stage.Stage {
		return NewEnsureAttr(id, nil)
	}, "stage")

	_ = stage.Default.Register(FilterPluginName, func(id string) stage.Stage {
		return NewFilter(id, nil)
	}, "stage")

	_ = stage.Default.Register(RedisStoreWriterPluginName, func(id string) stage.Stage {
		return NewRedisStoreWriter(id, nil)
	}, "stage")

	_ = stage.Default.Register(RedisStoreReaderPluginName, func(id string) stage.Stage {
		return NewRedisStoreReader(id, nil)
	}, "stage")
}
