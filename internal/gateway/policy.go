package gateway

import (
	"fmt"
	"strings"
)

// httpMethods はポリシー表で許可する標準HTTPメソッド名。
var httpMethods = map[string]struct{}{
	"GET": {}, "HEAD": {}, "POST": {}, "PUT": {}, "PATCH": {},
	"DELETE": {}, "CONNECT": {}, "OPTIONS": {}, "TRACE": {},
}

// Policy は認証なしでアクセスできる公開エンドポイントの表。
// 起動時に一度だけ構築され、以降は読み取り専用となる。
// 複数goroutineから同期なしで参照できる。
type Policy struct {
	// patterns はHTTPメソッド名から宣言順のコンパイル済みパターン列への表。
	patterns map[string][]*pathPattern
}

// pathPattern はコンパイル済みのglobパスパターン。
//   - `*`  は1つのセグメント全体
//   - `**` は0個以上のセグメント
//   - `?`  はセグメント内の1文字
type pathPattern struct {
	// raw は設定に書かれた元のパターン文字列。
	raw string
	// segments はセグメント単位に分割したパターン。
	segments []string
}

// CompilePolicy は設定のメソッド→パターン列の表からPolicyを構築する。
// 解釈できないパターンは起動時エラーとして返し、リクエスト時には持ち込まない。
func CompilePolicy(endpoints map[string][]string) (*Policy, error) {
	p := &Policy{patterns: make(map[string][]*pathPattern, len(endpoints))}
	for method, rawPatterns := range endpoints {
		if _, ok := httpMethods[method]; !ok {
			return nil, fmt.Errorf("公開エンドポイント設定に不正なHTTPメソッド: %q", method)
		}
		compiled := make([]*pathPattern, 0, len(rawPatterns))
		for _, raw := range rawPatterns {
			pat, err := compilePattern(raw)
			if err != nil {
				return nil, err
			}
			compiled = append(compiled, pat)
		}
		p.patterns[method] = compiled
	}
	return p, nil
}

// compilePattern はパターン文字列を検証してセグメント列にコンパイルする。
func compilePattern(raw string) (*pathPattern, error) {
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return nil, fmt.Errorf("パスパターンは/で始まる必要があります: %q", raw)
	}
	segments := splitPath(raw)
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("パスパターンに空のセグメントがあります: %q", raw)
		}
		if strings.Contains(seg, "**") && seg != "**" {
			return nil, fmt.Errorf("**はセグメント全体としてのみ使用できます: %q", raw)
		}
	}
	return &pathPattern{raw: raw, segments: segments}, nil
}

// IsPublic は指定されたメソッドとパスの組が公開エンドポイントかどうかを返す。
// メソッドのエントリがない場合はfalse。いずれかのパターンに一致した時点で
// trueを返す。副作用はなく、決して失敗しない。
func (p *Policy) IsPublic(method, path string) bool {
	patterns := p.patterns[method]
	if len(patterns) == 0 {
		return false
	}
	pathSegs := splitPath(path)
	for _, pat := range patterns {
		if matchSegments(pat.segments, pathSegs) {
			return true
		}
	}
	return false
}

// Patterns は指定メソッドのパターン文字列を宣言順で返す。診断ログ用。
func (p *Policy) Patterns(method string) []string {
	patterns := p.patterns[method]
	raws := make([]string, 0, len(patterns))
	for _, pat := range patterns {
		raws = append(raws, pat.raw)
	}
	return raws
}

// splitPath はパスをセグメント列に分割する。ルート"/"は空列になる。
func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// matchSegments はパターンセグメント列とパスセグメント列を突き合わせる。
// `**`は0個以上のセグメントを消費できるため再帰で分岐する。
func matchSegments(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}
	if pattern[0] == "**" {
		// 0個消費して次のパターンへ進むか、1個消費して**に留まるか
		if matchSegments(pattern[1:], path) {
			return true
		}
		return len(path) > 0 && matchSegments(pattern, path[1:])
	}
	if len(path) == 0 {
		return false
	}
	return matchSegment(pattern[0], path[0]) && matchSegments(pattern[1:], path[1:])
}

// matchSegment は1つのセグメントをパターンと突き合わせる。
// `*`は1文字以上の任意の内容、`?`はちょうど1文字、それ以外はリテラル一致。
func matchSegment(pattern, segment string) bool {
	if pattern == "*" {
		return segment != ""
	}
	return matchChars(pattern, segment)
}

// matchChars はセグメント内の文字単位マッチを行う。
// `*`は0文字以上、`?`は1文字を消費する。大文字小文字は区別する。
func matchChars(pattern, s string) bool {
	if pattern == "" {
		return s == ""
	}
	switch pattern[0] {
	case '*':
		if matchChars(pattern[1:], s) {
			return true
		}
		return s != "" && matchChars(pattern, s[1:])
	case '?':
		return s != "" && matchChars(pattern[1:], s[1:])
	default:
		return s != "" && s[0] == pattern[0] && matchChars(pattern[1:], s[1:])
	}
}
