package gateway

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Route は論理サービスへのルート定義。起動時に構築され以降は読み取り専用。
type Route struct {
	// ID はルートの識別子。ログと診断に使用する。
	ID string
	// PathPrefix はこのルートが受け持つパスのプレフィックス。
	PathPrefix string
	// Service は転送先の論理サービス名。
	Service string
	// StripSegments は転送前にパスの先頭から取り除くセグメント数。
	StripSegments int
}

// Registry は論理サービス名から稼働インスタンスのベースURLへの表。
// インスタンス選択はサービスごとのラウンドロビンで行う。
// 表自体は起動後に変更されず、カウンタのみatomicに更新する。
type Registry struct {
	// instances は論理サービス名→インスタンスURLの表。
	instances map[string][]string
	// counters はサービスごとのラウンドロビンカウンタ。
	counters map[string]*atomic.Uint64
}

// NewRegistry は論理サービス名→インスタンスURL列の表からRegistryを生成する。
func NewRegistry(instances map[string][]string) *Registry {
	r := &Registry{
		instances: make(map[string][]string, len(instances)),
		counters:  make(map[string]*atomic.Uint64, len(instances)),
	}
	for name, urls := range instances {
		trimmed := make([]string, 0, len(urls))
		for _, u := range urls {
			trimmed = append(trimmed, strings.TrimSuffix(u, "/"))
		}
		r.instances[name] = trimmed
		r.counters[name] = &atomic.Uint64{}
	}
	return r
}

// Next は論理サービスの次のインスタンスをラウンドロビンで返す。
// 複数インスタンスがある場合、連続する2リクエストが同じインスタンスに
// 向かうことはない。インスタンスがない場合はErrNoInstanceを返す。
func (r *Registry) Next(service string) (string, error) {
	urls := r.instances[service]
	if len(urls) == 0 {
		return "", fmt.Errorf("サービス %s: %w", service, ErrNoInstance)
	}
	counter := r.counters[service]
	idx := (counter.Add(1) - 1) % uint64(len(urls))
	return urls[idx], nil
}

// Router はパスから転送先インスタンスと書き換え後パスを解決する。
type Router struct {
	// routes は宣言順のルート定義。選択は最長プレフィックス一致で行う。
	routes []Route
	// registry はインスタンス解決に使用するRegistry。
	registry *Registry
}

// NewRouter はルート定義とRegistryからRouterを生成する。
// 不正なルート定義は起動時エラーとして返す。
func NewRouter(routes []Route, registry *Registry) (*Router, error) {
	for _, route := range routes {
		if !strings.HasPrefix(route.PathPrefix, "/") {
			return nil, fmt.Errorf("ルート %s: path_prefixは/で始まる必要があります: %q", route.ID, route.PathPrefix)
		}
		if route.StripSegments < 0 {
			return nil, fmt.Errorf("ルート %s: strip_segmentsは0以上である必要があります", route.ID)
		}
		if route.Service == "" {
			return nil, fmt.Errorf("ルート %s: serviceが指定されていません", route.ID)
		}
	}
	return &Router{routes: routes, registry: registry}, nil
}

// Resolve はパスに一致するルートを選び、転送先インスタンスのベースURLと
// 書き換え後のパスを返す。ルート選択は宣言されたプレフィックスの最長一致、
// インスタンス選択はラウンドロビン。ルートがなければErrRouteNotFound、
// インスタンスがなければErrNoInstanceを返す。
func (r *Router) Resolve(path string) (target string, rewritten string, err error) {
	var matched *Route
	for i := range r.routes {
		route := &r.routes[i]
		if !prefixMatches(route.PathPrefix, path) {
			continue
		}
		if matched == nil || len(route.PathPrefix) > len(matched.PathPrefix) {
			matched = route
		}
	}
	if matched == nil {
		return "", "", fmt.Errorf("パス %s: %w", path, ErrRouteNotFound)
	}

	target, err = r.registry.Next(matched.Service)
	if err != nil {
		return "", "", err
	}
	return target, stripSegments(path, matched.StripSegments), nil
}

// prefixMatches はパスがプレフィックスにセグメント境界で一致するかを返す。
// /bookが/booksに誤って一致しないよう、境界はスラッシュで区切る。
func prefixMatches(prefix, path string) bool {
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// stripSegments はパスの先頭からn個のセグメントを取り除く。
// 取り除いた結果が空になる場合はルート"/"を返す。
func stripSegments(path string, n int) string {
	if n <= 0 {
		return path
	}
	segments := splitPath(path)
	if n >= len(segments) {
		return "/"
	}
	return "/" + strings.Join(segments[n:], "/")
}
