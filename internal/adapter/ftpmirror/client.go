// Package ftpmirror implements domain.Catalog over an FTP mirror of product
// archives. Sensing periods are read from the archive file names.
package ftpmirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/textproto"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
	"github.com/jlaffaye/ftp"
)

const dialTimeout = 30 * time.Second

// sensingRe matches the "_<start>_<end>_" timestamp pair in LI archive names,
// e.g. "..._OPE_20240601120000_20240601120030_N__O_0072_0000.zip".
var sensingRe = regexp.MustCompile(`_(\d{14})_(\d{14})_`)

const sensingLayout = "20060102150405"

// errLoginRejected marks a refused login. Connect reports it as a
// configuration problem; later refusals are treated as transient.
var errLoginRejected = errors.New("ftp login rejected")

// Options configures a Client. Dir may contain {yyyy}, {mm} and {dd}
// placeholders for mirrors that shard archives by day.
type Options struct {
	Addr     string
	User     string
	Password string
	Dir      string
}

// Client lists and downloads archives. Every operation uses its own
// connection, so a Client is safe for concurrent use.
type Client struct {
	opts   Options
	logger *slog.Logger
}

// NewClient creates an FTP mirror catalog.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.User == "" {
		opts.User = "anonymous"
		opts.Password = "anonymous"
	}
	if opts.Dir == "" {
		opts.Dir = "/"
	}
	return &Client{opts: opts, logger: logger}
}

func (c *Client) dial(ctx context.Context) (*ftp.ServerConn, error) {
	if c.opts.Addr == "" {
		return nil, &domain.ConfigError{Msg: "ftp mirror address is not configured: set FTP_ADDR"}
	}
	conn, err := ftp.Dial(c.opts.Addr, ftp.DialWithTimeout(dialTimeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	if err := conn.Login(c.opts.User, c.opts.Password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("%w: %w", errLoginRejected, err)
	}
	return conn, nil
}

// Connect verifies that the mirror accepts a login. A refused login is a
// *domain.ConfigError.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if errors.Is(err, errLoginRejected) {
		return &domain.ConfigError{Msg: err.Error()}
	}
	if err != nil {
		return err
	}
	return conn.Quit()
}

// ListProducts returns archives whose sensing period overlaps [start, end),
// ordered by sensing start. Missing directories hold no archives.
func (c *Client) ListProducts(ctx context.Context, start, end time.Time) ([]domain.Product, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit()

	var archives []archive
	for _, dir := range dirsFor(c.opts.Dir, start, end) {
		entries, err := conn.List(dir)
		var protoErr *textproto.Error
		if errors.As(err, &protoErr) && protoErr.Code == ftp.StatusFileUnavailable {
			c.logger.Debug("ftp directory missing", "dir", dir)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ftp list %s: %w", dir, err)
		}
		archives = append(archives, selectArchives(dir, entries, start, end)...)
	}

	sort.Slice(archives, func(i, j int) bool { return archives[i].start.Before(archives[j].start) })
	out := make([]domain.Product, len(archives))
	for i := range archives {
		archives[i].client = c
		out[i] = &archives[i]
	}
	c.logger.Debug("ftp mirror listing complete", "addr", c.opts.Addr, "products", len(out))
	return out, nil
}

// archive is one product file on the mirror.
type archive struct {
	client *Client
	path   string
	start  time.Time
	end    time.Time
}

func (a *archive) Name() string { return strings.TrimSuffix(path.Base(a.path), ".zip") }

// Open retrieves the archive on a dedicated connection, closed with the reader.
func (a *archive) Open(ctx context.Context) (io.ReadCloser, error) {
	conn, err := a.client.dial(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := conn.Retr(a.path)
	if err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("ftp retr %s: %w", a.path, err)
	}
	return &retrieval{resp: resp, conn: conn}, nil
}

type retrieval struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *retrieval) Read(p []byte) (int, error) { return r.resp.Read(p) }

func (r *retrieval) Close() error {
	err := r.resp.Close()
	if qerr := r.conn.Quit(); err == nil {
		err = qerr
	}
	return err
}

// selectArchives keeps the zip files in entries whose sensing period overlaps
// [start, end).
func selectArchives(dir string, entries []*ftp.Entry, start, end time.Time) []archive {
	var out []archive
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile || !strings.EqualFold(path.Ext(e.Name), ".zip") {
			continue
		}
		s, en, ok := parseSensingPeriod(e.Name)
		if !ok || !s.Before(end) || !en.After(start) {
			continue
		}
		out = append(out, archive{path: path.Join(dir, e.Name), start: s, end: en})
	}
	return out
}

func parseSensingPeriod(name string) (start, end time.Time, ok bool) {
	m := sensingRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, time.Time{}, false
	}
	start, err := time.Parse(sensingLayout, m[1])
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err = time.Parse(sensingLayout, m[2])
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// dirsFor expands day placeholders in tmpl for every UTC day touched by
// [start, end), plus the day before start, which holds archives that begin
// before midnight and run into the window. A template without placeholders
// yields itself once.
func dirsFor(tmpl string, start, end time.Time) []string {
	if !strings.Contains(tmpl, "{") {
		return []string{tmpl}
	}
	var dirs []string
	seen := make(map[string]bool)
	start = start.UTC()
	day := time.Date(start.Year(), start.Month(), start.Day()-1, 0, 0, 0, 0, time.UTC)
	for ; day.Before(end); day = day.AddDate(0, 0, 1) {
		d := strings.NewReplacer(
			"{yyyy}", day.Format("2006"),
			"{mm}", day.Format("01"),
			"{dd}", day.Format("02"),
		).Replace(tmpl)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}
