package synth

import (
	"bytes"
	"text/template"

	"github.com/SentimentalK/Avalon-Tunnel/model"
)

// The routing table rendered for the reverse proxy / TLS terminator. User
// paths are declared as explicit handle blocks so they always match before
// the catch-all decoy route; the header block hides the real server identity
// and disables caching and content sniffing across the whole site.
var routesTemplate = template.Must(template.New("routes").Parse(`# Generated reverse proxy configuration. Do not edit; changes are
# overwritten on the next synthesis run.

{{.Domain}} {
{{- range .Routes}}
    handle /{{.SecretPath}} {
        reverse_proxy 127.0.0.1:{{.Port}} {
            header_up Host {host}
            header_up X-Real-IP {remote}
            header_up Upgrade {http.request.header.Upgrade}
            header_up Connection {http.request.header.Connection}
        }
    }
{{- end}}

    handle /api/* {
        reverse_proxy 127.0.0.1:{{.AdminPort}}
    }

    handle {
        reverse_proxy 127.0.0.1:{{.DecoyPort}}
    }

    header {
        -Server
        Server "nginx/1.18.0"
        X-Content-Type-Options "nosniff"
        X-Frame-Options "DENY"
        X-XSS-Protection "1; mode=block"
        Strict-Transport-Security "max-age=31536000; includeSubDomains"
        Cache-Control "no-cache, no-store, must-revalidate"
    }

    log {
        output file /var/log/caddy/access.log
        format json
    }
}
`))

type userRoute struct {
	SecretPath string
	Port       int
}

type routesData struct {
	Domain    string
	Routes    []userRoute
	AdminPort string
	DecoyPort string
}

func renderRoutes(domain string, users []*model.User, portBase int, adminPort, decoyPort string) ([]byte, error) {
	data := routesData{
		Domain:    domain,
		AdminPort: adminPort,
		DecoyPort: decoyPort,
	}
	for _, user := range users {
		if user.SecretPath == "" {
			continue
		}
		data.Routes = append(data.Routes, userRoute{
			SecretPath: user.SecretPath,
			Port:       portBase + int(user.PortIndex),
		})
	}

	var buf bytes.Buffer
	if err := routesTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
