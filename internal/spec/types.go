package spec

// Mark identifies how a layer is drawn.
type Mark string

const (
	MarkBar   Mark = "bar"
	MarkRect  Mark = "rect"
	MarkLine  Mark = "line"
	MarkArea  Mark = "area"
	MarkPoint Mark = "point"
	MarkRule  Mark = "rule"
)

// ValidMarks defines the allowed layer marks.
var ValidMarks = map[Mark]bool{
	MarkBar:   true,
	MarkRect:  true,
	MarkLine:  true,
	MarkArea:  true,
	MarkPoint: true,
	MarkRule:  true,
}

// Channel is a visual attribute a layer can encode.
type Channel string

const (
	ChannelX     Channel = "x"
	ChannelY     Channel = "y"
	ChannelX1    Channel = "x1"
	ChannelX2    Channel = "x2"
	ChannelY1    Channel = "y1"
	ChannelY2    Channel = "y2"
	ChannelColor Channel = "color"
	ChannelSize  Channel = "size"
	ChannelGroup Channel = "group"
)

// Channels lists every channel in resolution order. Iterating a layer's
// encoding map in this order keeps generated SQL deterministic.
var Channels = []Channel{
	ChannelX, ChannelY, ChannelX1, ChannelX2, ChannelY1, ChannelY2,
	ChannelColor, ChannelSize, ChannelGroup,
}

// IsPosition reports whether c places a mark along an axis.
func (c Channel) IsPosition() bool {
	switch c {
	case ChannelX, ChannelY, ChannelX1, ChannelX2, ChannelY1, ChannelY2:
		return true
	}
	return false
}

// Axis returns the axis channel c contributes to: x1 and x2 share the x
// scale, y1 and y2 share the y scale. Non-position channels map to
// themselves.
func (c Channel) Axis() Channel {
	switch c {
	case ChannelX1, ChannelX2:
		return ChannelX
	case ChannelY1, ChannelY2:
		return ChannelY
	}
	return c
}

// Opposite returns the orthogonal axis for a position channel, or "" for
// non-position channels.
func (c Channel) Opposite() Channel {
	switch c.Axis() {
	case ChannelX:
		return ChannelY
	case ChannelY:
		return ChannelX
	}
	return ""
}

// ChartSpec is the JSON document describing one chart.
type ChartSpec struct {
	Title      string                   `json:"title,omitempty"`
	Layers     []Layer                  `json:"layers"`
	Scale      map[Channel]ScaleSpec    `json:"scale,omitempty"`
	Axis       map[Channel]AxisSpec     `json:"axis,omitempty"`
	Selections map[string]SelectionSpec `json:"selections,omitempty"`
	Widgets    []Widget                 `json:"widgets,omitempty"`
}

// Layer is one mark kind plus its encodings.
//
// Source is optional. An empty Source means the chart's table. A bare
// identifier names another table; anything else is treated as a SQL query
// and may reference the shared filter with the $filter placeholder.
type Layer struct {
	Mark     Mark                 `json:"mark"`
	Source   string               `json:"source,omitempty"`
	Filter   *bool                `json:"filter,omitempty"`
	Style    map[string]any       `json:"style,omitempty"`
	ZIndex   int                  `json:"zIndex,omitempty"`
	Encoding map[Channel]Encoding `json:"encoding"`
}

// FilterPlaceholder is replaced with the cross-filter predicate inside a
// custom SQL source.
const FilterPlaceholder = "$filter"

// ScaleSpec overrides inference for one channel.
type ScaleSpec struct {
	Type     string  `json:"type,omitempty"` // "linear", "log", "symlog" or "band"
	Domain   []any   `json:"domain,omitempty"`
	Constant float64 `json:"constant,omitempty"` // symlog linear-region constant
	Zero     *bool   `json:"zero,omitempty"`
}

// Scale type names.
const (
	ScaleLinear = "linear"
	ScaleLog    = "log"
	ScaleSymlog = "symlog"
	ScaleBand   = "band"
)

// AxisSpec overrides axis presentation for x or y.
type AxisSpec struct {
	Title     string `json:"title,omitempty"`
	TickCount int    `json:"tickCount,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
}

// SelectionSpec declares a named interaction whose state is written to the
// shared cross-filter.
type SelectionSpec struct {
	Type     string `json:"type"`               // "point" or "interval"
	Encoding string `json:"encoding,omitempty"` // "x", "y" or "xy"
	Layer    int    `json:"layer,omitempty"`    // layer whose encodings define the predicate
}

// Selection types and encodings.
const (
	SelectionPoint    = "point"
	SelectionInterval = "interval"

	SelectEncodingX  = "x"
	SelectEncodingY  = "y"
	SelectEncodingXY = "xy"
)

// Widget is an opaque host-side control attached to a chart. The runtime
// carries widgets through unchanged.
type Widget struct {
	Type    string         `json:"type"`
	Options map[string]any `json:"options,omitempty"`
}

// Aggregate names accepted by aggregate encodings.
const (
	AggCount     = "count"
	AggMin       = "min"
	AggMax       = "max"
	AggMean      = "mean"
	AggMedian    = "median"
	AggStdev     = "stdev"
	AggVariance  = "variance"
	AggSum       = "sum"
	AggProduct   = "product"
	AggQuantile  = "quantile"
	AggEcdfValue = "ecdfValue"
	AggEcdfRank  = "ecdfRank"
)

// ParticipatesInFilter reports whether the layer's query is filtered by the
// shared cross-filter: an explicit flag, or a custom source mentioning the
// placeholder.
func (l Layer) ParticipatesInFilter() bool {
	if l.Filter != nil && *l.Filter {
		return true
	}
	return containsPlaceholder(l.Source)
}
