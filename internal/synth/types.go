package synth

// Wire types for the rendered tunnel-daemon configuration. Field order is
// fixed by the struct definitions so repeated synthesis runs marshal to
// byte-identical documents.

type IngressDocument struct {
	Log       LogConfig   `json:"log"`
	Inbounds  []Inbound   `json:"inbounds"`
	Outbounds []Outbound  `json:"outbounds"`
	Routing   RouteConfig `json:"routing"`
}

type LogConfig struct {
	Loglevel string `json:"loglevel"`
	Access   string `json:"access"`
	Error    string `json:"error"`
}

// Inbound is one isolated tunnel listener. Every listener authenticates
// exactly one client credential and is keyed to that user's own path, so a
// leaked credential/path pair is useless against any other listener.
type Inbound struct {
	Port           int             `json:"port"`
	Listen         string          `json:"listen"`
	Protocol       string          `json:"protocol"`
	Settings       InboundSettings `json:"settings"`
	StreamSettings StreamSettings  `json:"streamSettings"`
}

type InboundSettings struct {
	Clients    []Client `json:"clients"`
	Decryption string   `json:"decryption"`
}

type Client struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
	Email string `json:"email"`
}

type StreamSettings struct {
	Network    string     `json:"network"`
	WSSettings WSSettings `json:"wsSettings"`
}

type WSSettings struct {
	Path string `json:"path"`
}

type Outbound struct {
	Protocol string   `json:"protocol"`
	Settings struct{} `json:"settings"`
	Tag      string   `json:"tag,omitempty"`
}

type RouteConfig struct {
	Rules []RouteRule `json:"rules"`
}

type RouteRule struct {
	Type        string   `json:"type"`
	IP          []string `json:"ip"`
	OutboundTag string   `json:"outboundTag"`
}

// blockedRanges are the private and reserved address ranges every listener
// must refuse to egress to.
var blockedRanges = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"::1/128",
	"fc00::/7",
	"fe80::/10",
}
