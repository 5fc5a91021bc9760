package anchor

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/serjvanilla/go-overpass"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultOverpassEndpoint is the public Overpass API interpreter.
const DefaultOverpassEndpoint = "https://overpass-api.de/api/interpreter"

// DefaultTags select rail and subway stations.
var DefaultTags = []string{
	`["railway"="station"]`,
	`["public_transport"="station"]`,
}

// OverpassFinder queries OpenStreetMap through the Overpass API.
type OverpassFinder struct {
	client  *overpass.Client
	limiter *rate.Limiter
	tags    []string
	timeout time.Duration
}

// OverpassOption configures an OverpassFinder.
type OverpassOption func(*OverpassFinder)

// WithRateLimit caps queries per second.
func WithRateLimit(rps float64) OverpassOption {
	return func(f *OverpassFinder) {
		if rps > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithTags overrides the Overpass tag filters.
func WithTags(tags []string) OverpassOption {
	return func(f *OverpassFinder) {
		if len(tags) > 0 {
			f.tags = append([]string(nil), tags...)
		}
	}
}

// WithTimeout bounds each Overpass request.
func WithTimeout(d time.Duration) OverpassOption {
	return func(f *OverpassFinder) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// NewOverpassFinder creates an OverpassFinder for endpoint.
func NewOverpassFinder(endpoint string, opts ...OverpassOption) *OverpassFinder {
	if endpoint == "" {
		endpoint = DefaultOverpassEndpoint
	}
	f := &OverpassFinder{
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		tags:    DefaultTags,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	client := overpass.NewWithSettings(endpoint, 1, &http.Client{Timeout: f.timeout})
	f.client = &client
	return f
}

// Query builds the Overpass QL for stations around a point.
func (f *OverpassFinder) Query(lat, lng, radiusM float64) string {
	var b strings.Builder
	b.WriteString("[out:json];(")
	around := fmt.Sprintf("(around:%s,%s,%s)",
		strconv.FormatFloat(radiusM, 'f', 0, 64),
		strconv.FormatFloat(lat, 'f', 6, 64),
		strconv.FormatFloat(lng, 'f', 6, 64))
	for _, tag := range f.tags {
		b.WriteString("node" + tag + around + ";")
		b.WriteString("way" + tag + around + ";")
	}
	b.WriteString(");out body;>;out skel qt;")
	return b.String()
}

// Nearest implements Finder.
func (f *OverpassFinder) Nearest(ctx context.Context, lat, lng, radiusM float64) (*Facility, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "anchor: overpass rate limit")
	}

	type outcome struct {
		res overpass.Result
		err error
	}
	done := make(chan outcome, 1)
	query := f.Query(lat, lng, radiusM)
	go func() {
		res, err := f.client.Query(query)
		done <- outcome{res: res, err: err}
	}()

	var out outcome
	select {
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "anchor: overpass query")
	case out = <-done:
	}
	if out.err != nil {
		return nil, eris.Wrap(out.err, "anchor: overpass query")
	}

	facilities := convertResult(out.res)
	zap.L().Debug("anchor: overpass stations",
		zap.Float64("lat", lat), zap.Float64("lng", lng), zap.Int("count", len(facilities)))
	return nearest(lat, lng, radiusM, facilities), nil
}

// convertResult turns named nodes and ways into facilities. Ways use the
// centroid of their member nodes. Unnamed elements are not anchors.
func convertResult(res overpass.Result) []Facility {
	var out []Facility
	for id, n := range res.Nodes {
		if n == nil || n.Tags["name"] == "" {
			continue
		}
		out = append(out, Facility{
			ID:   "node/" + strconv.FormatInt(id, 10),
			Name: n.Tags["name"],
			Kind: kindFromTags(n.Tags),
			Lat:  n.Lat,
			Lng:  n.Lon,
		})
	}
	for id, w := range res.Ways {
		if w == nil || w.Tags["name"] == "" || len(w.Nodes) == 0 {
			continue
		}
		var lat, lng float64
		var count int
		for _, n := range w.Nodes {
			if n == nil {
				continue
			}
			lat += n.Lat
			lng += n.Lon
			count++
		}
		if count == 0 {
			continue
		}
		out = append(out, Facility{
			ID:   "way/" + strconv.FormatInt(id, 10),
			Name: w.Tags["name"],
			Kind: kindFromTags(w.Tags),
			Lat:  lat / float64(count),
			Lng:  lng / float64(count),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func kindFromTags(tags map[string]string) string {
	switch {
	case tags["station"] == "subway":
		return "subway_station"
	case tags["railway"] == "station":
		return "rail_station"
	case tags["public_transport"] == "station":
		return "transit_station"
	default:
		return "station"
	}
}
