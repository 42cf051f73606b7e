package qbittorrent

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// Peer is one connected peer as reported by sync/torrentPeers.
type Peer struct {
	IP       string  `json:"ip"`
	Port     int     `json:"port"`
	Client   string  `json:"client"`
	Country  string  `json:"country"`
	Progress float64 `json:"progress"`
	DlSpeed  int64   `json:"dl_speed"`
	UpSpeed  int64   `json:"up_speed"`
}

// PeerSource returns the current peers of one torrent keyed by "ip:port".
type PeerSource interface {
	Peers(ctx context.Context, hash string) (map[string]Peer, error)
}

type peersResponse struct {
	Peers        map[string]map[string]any `json:"peers"`
	PeersRemoved []string                  `json:"peers_removed"`
	Rid          int64                     `json:"rid"`
	FullUpdate   bool                      `json:"full_update"`
}

// peerState is the merged result of all sync responses for one torrent.
type peerState struct {
	mu    sync.Mutex
	rid   int64
	peers map[string]map[string]any
}

// apply merges an incremental response. Changed peers carry only the
// fields that differ from the previous response.
func (s *peerState) apply(resp *peersResponse) {
	if resp.FullUpdate || s.peers == nil {
		s.peers = make(map[string]map[string]any, len(resp.Peers))
	}
	for key, fields := range resp.Peers {
		cur, ok := s.peers[key]
		if !ok {
			cur = make(map[string]any, len(fields))
			s.peers[key] = cur
		}
		maps.Copy(cur, fields)
	}
	for _, key := range resp.PeersRemoved {
		delete(s.peers, key)
	}
	s.rid = resp.Rid
}

func (s *peerState) snapshot() (map[string]Peer, error) {
	out := make(map[string]Peer, len(s.peers))
	for key, fields := range s.peers {
		var p Peer
		if err := recode(fields, &p); err != nil {
			return nil, err
		}
		out[key] = p
	}
	return out, nil
}

// webPeers keeps one incremental sync/torrentPeers session per torrent. The
// qBittorrent library does not wrap that endpoint, so it talks to the Web API
// with its own cookie session.
type webPeers struct {
	http     *retryablehttp.Client
	base     string
	username string
	password string
	opts     clientOptions

	mu       sync.Mutex
	loggedIn bool
	states   map[string]*peerState
}

func newWebPeers(host, username, password string, o clientOptions, logger zerolog.Logger) *webPeers {
	jar, _ := cookiejar.New(nil)

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if o.tlsSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Jar: jar, Timeout: o.timeout, Transport: transport}
	rc.Logger = retryLogger{logger.With().Str("component", "peers").Logger()}
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second

	return &webPeers{
		http:     rc,
		base:     strings.TrimRight(host, "/") + "/api/v2/",
		username: username,
		password: password,
		opts:     o,
		states:   make(map[string]*peerState),
	}
}

func (w *webPeers) Peers(ctx context.Context, hash string) (map[string]Peer, error) {
	w.mu.Lock()
	st, ok := w.states[hash]
	if !ok {
		st = &peerState{}
		w.states[hash] = st
	}
	w.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()

	var resp peersResponse
	err := w.get(ctx, "sync/torrentPeers", url.Values{
		"hash": {hash},
		"rid":  {strconv.FormatInt(st.rid, 10)},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to sync torrent peers: %w", err)
	}

	st.apply(&resp)
	return st.snapshot()
}

// forget drops the sync state of torrents not in live.
func (w *webPeers) forget(live map[string]struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for hash := range w.states {
		if _, ok := live[hash]; !ok {
			delete(w.states, hash)
		}
	}
}

// get decodes a Web API GET into dst, logging in first and once more when
// the session expired.
func (w *webPeers) get(ctx context.Context, endpoint string, query url.Values, dst any) error {
	for attempt := 0; ; attempt++ {
		if err := w.ensureLogin(ctx); err != nil {
			return err
		}

		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, w.base+endpoint+"?"+query.Encode(), nil)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		w.authorize(req)

		resp, err := w.http.Do(req)
		if err != nil {
			return err
		}

		switch resp.StatusCode {
		case http.StatusOK:
			defer resp.Body.Close()
			if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
				return fmt.Errorf("failed to decode %s: %w", endpoint, err)
			}
			return nil
		case http.StatusForbidden:
			drain(resp)
			if attempt > 0 {
				return fmt.Errorf("%w: session rejected", ErrConnectionFailed)
			}
			w.mu.Lock()
			w.loggedIn = false
			w.mu.Unlock()
		case http.StatusNotFound:
			drain(resp)
			return ErrTorrentNotFound
		default:
			drain(resp)
			return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
		}
	}
}

func (w *webPeers) ensureLogin(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.loggedIn {
		return nil
	}

	form := url.Values{"username": {w.username}, "password": {w.password}}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, w.base+"auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w.authorize(req)

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "Ok." {
		return fmt.Errorf("%w: login refused (status %d)", ErrConnectionFailed, resp.StatusCode)
	}

	w.loggedIn = true
	return nil
}

func (w *webPeers) authorize(req *retryablehttp.Request) {
	if w.opts.basicUser != "" {
		req.SetBasicAuth(w.opts.basicUser, w.opts.basicPass)
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// retryLogger adapts zerolog to retryablehttp.LeveledLogger.
type retryLogger struct {
	logger zerolog.Logger
}

func (l retryLogger) Error(msg string, kv ...any) { l.logger.Error().Fields(kv).Msg(msg) }
func (l retryLogger) Warn(msg string, kv ...any)  { l.logger.Warn().Fields(kv).Msg(msg) }
func (l retryLogger) Info(msg string, kv ...any)  { l.logger.Debug().Fields(kv).Msg(msg) }
func (l retryLogger) Debug(msg string, kv ...any) { l.logger.Trace().Fields(kv).Msg(msg) }
