package history

import "github.com/kilianp07/printfleet/core/factory"

var registry = factory.NewRegistry[Store]()

type pathConf struct {
	Path string `json:"path"`
}

func init() {
	_ = registry.Register("none", func(map[string]any) (Store, error) { return NopStore{}, nil })
	_ = registry.Register("jsonl", func(conf map[string]any) (Store, error) {
		var c pathConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewJSONLStore(c.Path)
	})
	_ = registry.Register("bolt", func(conf map[string]any) (Store, error) {
		var c pathConf
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewBoltStore(c.Path)
	})
}

// New builds the store described by cfg. An empty type yields a NopStore.
func New(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" {
		return NopStore{}, nil
	}
	return registry.Create(cfg)
}

// Backends lists the supported store types.
func Backends() []string { return registry.Types() }
