// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"

	"github.com/jeranaias/compras-tui/internal/storage"
)

// persistedCookie is the stored form of one cookie. Only cookies with an
// expiry are persisted; session cookies live and die with the process.
type persistedCookie struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

// Jar is an http.CookieJar that mirrors persistent cookies into a
// storage.Store so the backend's credential cookies survive restarts.
// Cookie values are opaque to the application; nothing outside the jar
// reads them.
type Jar struct {
	mu      sync.Mutex
	inner   *cookiejar.Jar
	entries map[string]persistedCookie
	store   storage.Store
	log     zerolog.Logger
	now     func() time.Time
}

// NewJar creates an in-memory jar.
func NewJar() (*Jar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Jar{
		inner:   inner,
		entries: make(map[string]persistedCookie),
		log:     zerolog.Nop(),
		now:     time.Now,
	}, nil
}

// NewPersistentJar creates a jar backed by store and restores any unexpired
// cookies saved under storage.KeyCookies. An unreadable record is logged and
// dropped; the jar then starts empty.
func NewPersistentJar(ctx context.Context, store storage.Store, log zerolog.Logger) (*Jar, error) {
	j, err := NewJar()
	if err != nil {
		return nil, err
	}
	j.store = store
	j.log = log

	data, err := store.Get(ctx, storage.KeyCookies)
	if errors.Is(err, storage.ErrNotFound) {
		return j, nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("discarding unreadable cookie record")
		_ = store.Delete(ctx, storage.KeyCookies)
		return j, nil
	}

	var saved []persistedCookie
	if err := json.Unmarshal(data, &saved); err != nil {
		log.Warn().Err(err).Msg("discarding malformed cookie record")
		_ = store.Delete(ctx, storage.KeyCookies)
		return j, nil
	}

	now := j.now()
	for _, pc := range saved {
		if !pc.Expires.After(now) {
			continue
		}
		u, err := url.Parse(pc.URL)
		if err != nil {
			continue
		}
		j.inner.SetCookies(u, []*http.Cookie{{
			Name:     pc.Name,
			Value:    pc.Value,
			Domain:   pc.Domain,
			Path:     pc.Path,
			Expires:  pc.Expires,
			Secure:   pc.Secure,
			HttpOnly: pc.HTTPOnly,
		}})
		j.entries[entryKey(u, pc.Domain, pc.Path, pc.Name)] = pc
	}
	log.Debug().Int("cookies", len(j.entries)).Msg("cookie jar restored")
	return j, nil
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.inner.SetCookies(u, cookies)

	now := j.now()
	changed := false
	origin := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}
	for _, c := range cookies {
		key := entryKey(u, c.Domain, c.Path, c.Name)

		var expires time.Time
		switch {
		case c.MaxAge < 0:
			// deletion
		case c.MaxAge > 0:
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			expires = c.Expires
		}

		if expires.IsZero() || !expires.After(now) {
			if _, ok := j.entries[key]; ok {
				delete(j.entries, key)
				changed = true
			}
			continue
		}

		j.entries[key] = persistedCookie{
			URL:      origin.String(),
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		changed = true
	}

	if changed {
		j.saveLocked(context.Background())
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	inner := j.inner
	j.mu.Unlock()
	return inner.Cookies(u)
}

// Len returns the number of persisted cookies.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// Clear drops every cookie and the persisted record.
func (j *Jar) Clear(ctx context.Context) error {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.inner = inner
	j.entries = make(map[string]persistedCookie)
	if j.store == nil {
		return nil
	}
	return j.store.Delete(ctx, storage.KeyCookies)
}

// saveLocked writes the persisted set. Failures are logged: a cookie that
// fails to persist only costs a login on the next start.
func (j *Jar) saveLocked(ctx context.Context) {
	if j.store == nil {
		return
	}
	if len(j.entries) == 0 {
		if err := j.store.Delete(ctx, storage.KeyCookies); err != nil {
			j.log.Warn().Err(err).Msg("failed to delete cookie record")
		}
		return
	}

	list := make([]persistedCookie, 0, len(j.entries))
	for _, pc := range j.entries {
		list = append(list, pc)
	}
	sort.Slice(list, func(a, b int) bool { return list[a].Name < list[b].Name })

	data, err := json.Marshal(list)
	if err != nil {
		j.log.Warn().Err(err).Msg("failed to encode cookies")
		return
	}
	if err := j.store.Put(ctx, storage.KeyCookies, data); err != nil {
		j.log.Warn().Err(err).Msg("failed to persist cookies")
	}
}

func entryKey(u *url.URL, domain, path, name string) string {
	if domain == "" {
		domain = u.Hostname()
	}
	if path == "" {
		path = "/"
	}
	return domain + ";" + path + ";" + name
}
