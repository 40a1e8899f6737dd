package storage

import (
	"fmt"
	"log"

	"github.com/mitchellh/mapstructure"
)

// Config 存储层配置
// Settings carries the per-provider options as loose maps (the shape viper
// hands back); each provider decodes its own section.
type Config struct {
	Type     string
	Settings map[string]interface{}
}

// Factory 存储工厂 creates and holds the configured providers.
type Factory struct {
	providers       map[string]Provider
	defaultProvider string
}

// NewFactory initializes every configured provider. The configured default
// type must have come up for the factory to be usable.
func NewFactory(cfg Config) (*Factory, error) {
	factory := &Factory{providers: make(map[string]Provider)}

	log.Println("[Storage] initializing storage providers...")

	if section, ok := cfg.Settings["local"]; ok {
		var localCfg LocalConfig
		if err := mapstructure.Decode(section, &localCfg); err != nil {
			return nil, fmt.Errorf("invalid local storage config: %w", err)
		}
		if localCfg.Path != "" {
			provider, err := NewLocalStorage(localCfg)
			if err != nil {
				log.Printf("[Storage] failed to initialize local storage: %v", err)
			} else {
				factory.providers["local"] = provider
				log.Println("[Storage] initialized 'local' provider")
			}
		}
	}

	if section, ok := cfg.Settings["minio"]; ok {
		var minioCfg MinioConfig
		if err := mapstructure.Decode(section, &minioCfg); err != nil {
			return nil, fmt.Errorf("invalid minio storage config: %w", err)
		}
		if minioCfg.Endpoint != "" {
			provider, err := NewMinioStorage(minioCfg)
			if err != nil {
				log.Printf("[Storage] failed to initialize minio storage: %v", err)
			} else {
				factory.providers["minio"] = provider
				log.Println("[Storage] initialized 'minio' provider")
			}
		}
	}

	if section, ok := cfg.Settings["webdav"]; ok {
		var webdavCfg WebDAVConfig
		if err := mapstructure.Decode(section, &webdavCfg); err != nil {
			return nil, fmt.Errorf("invalid webdav storage config: %w", err)
		}
		if webdavCfg.URL != "" {
			provider, err := NewWebDAVStorage(webdavCfg)
			if err != nil {
				log.Printf("[Storage] failed to initialize webdav storage: %v", err)
			} else {
				factory.providers["webdav"] = provider
				log.Println("[Storage] initialized 'webdav' provider")
			}
		}
	}

	if len(factory.providers) == 0 {
		return nil, fmt.Errorf("no storage providers were successfully initialized")
	}

	factory.defaultProvider = cfg.Type
	if _, ok := factory.providers[factory.defaultProvider]; !ok {
		return nil, fmt.Errorf("default storage type '%s' is not available", factory.defaultProvider)
	}
	log.Printf("[Storage] default provider: '%s'", factory.defaultProvider)

	return factory, nil
}

// Get returns the provider with the given name, or the default for "".
func (f *Factory) Get(name string) (Provider, error) {
	if name == "" {
		name = f.defaultProvider
	}
	provider, ok := f.providers[name]
	if !ok {
		return nil, fmt.Errorf("storage provider '%s' not found", name)
	}
	return provider, nil
}

// GetDefault returns the default provider.
func (f *Factory) GetDefault() Provider {
	provider, _ := f.Get(f.defaultProvider)
	return provider
}

// ListProviders lists the available provider names.
func (f *Factory) ListProviders() []string {
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	return names
}
