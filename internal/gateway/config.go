package gateway

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultConfig はバイナリに埋め込むデフォルト設定。
//
//go:embed config.yaml
var defaultConfig []byte

// Config はgatewayの設定ファイルの構造。起動時に一度だけ読み込み、
// 以降の変更（ホットリロード）は行わない。
type Config struct {
	// PublicEndpoints はHTTPメソッド名→globパスパターン列の表。
	PublicEndpoints map[string][]string `yaml:"public_endpoints"`
	// Routes は宣言順のルート定義。
	Routes []RouteConfig `yaml:"routes"`
	// Services は論理サービス名→インスタンス定義の表。
	Services map[string]ServiceConfig `yaml:"services"`
}

// RouteConfig は設定ファイル上のルート定義。
type RouteConfig struct {
	// ID はルートの識別子。
	ID string `yaml:"id"`
	// PathPrefix はこのルートが受け持つパスのプレフィックス。
	PathPrefix string `yaml:"path_prefix"`
	// Service は転送先の論理サービス名。
	Service string `yaml:"service"`
	// StripSegments は転送前にパスの先頭から取り除くセグメント数。
	StripSegments int `yaml:"strip_segments"`
}

// ServiceConfig は論理サービスのインスタンス定義。
type ServiceConfig struct {
	// Instances はインスタンスのベースURLのリスト。
	Instances []string `yaml:"instances"`
}

// LoadConfig は設定ファイルを読み込む。pathが空の場合は埋め込みの
// デフォルト設定を使用する。ルート定義の不整合は起動時エラーとして返す。
func LoadConfig(path string) (*Config, error) {
	data := defaultConfig
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルのパースに失敗: %w", err)
	}

	for _, route := range cfg.Routes {
		if _, ok := cfg.Services[route.Service]; !ok {
			return nil, fmt.Errorf("ルート %s が未定義のサービス %q を参照しています", route.ID, route.Service)
		}
	}
	return cfg, nil
}

// routeTable は設定のルート定義をRouterのルート列に変換する。
func (c *Config) routeTable() []Route {
	routes := make([]Route, 0, len(c.Routes))
	for _, rc := range c.Routes {
		routes = append(routes, Route{
			ID:            rc.ID,
			PathPrefix:    rc.PathPrefix,
			Service:       rc.Service,
			StripSegments: rc.StripSegments,
		})
	}
	return routes
}

// serviceInstances は設定のサービス定義をRegistryの表に変換する。
func (c *Config) serviceInstances() map[string][]string {
	instances := make(map[string][]string, len(c.Services))
	for name, sc := range c.Services {
		instances[name] = sc.Instances
	}
	return instances
}
