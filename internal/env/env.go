// Package env names the widget deployments and builds the URL the embedded
// content is loaded from.
package env

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnknown is returned for an unrecognized environment name.
var ErrUnknown = errors.New("env: unknown environment")

// Platform is reported to the widget in the load URL.
const Platform = "go"

// Env is a widget deployment.
type Env struct {
	Name      string
	SDKURL    string
	WidgetURL string
}

var (
	Local = Env{
		Name:      "local",
		SDKURL:    "http://192.168.100.11:3011",
		WidgetURL: "http://192.168.100.11:3002",
	}
	Dev = Env{
		Name:      "dev",
		SDKURL:    "https://widget-sdk.dev.cere.io",
		WidgetURL: "https://widget.dev.cere.io",
	}
	Stage = Env{
		Name:      "stage",
		SDKURL:    "https://widget-sdk.stage.cere.io",
		WidgetURL: "https://widget.stage.cere.io",
	}
	Production = Env{
		Name:      "production",
		SDKURL:    "https://widget-sdk.cere.io",
		WidgetURL: "https://widget.cere.io",
	}
)

// All lists the known environments.
func All() []Env {
	return []Env{Local, Dev, Stage, Production}
}

// Parse resolves an environment by name, case-insensitively. "prod" is
// accepted for production.
func Parse(name string) (Env, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "local":
		return Local, nil
	case "dev":
		return Dev, nil
	case "stage":
		return Stage, nil
	case "production", "prod":
		return Production, nil
	default:
		return Env{}, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
}

// PageURL is the widget's host page.
func (e Env) PageURL() string {
	return e.WidgetURL + "/native.html"
}

// LoadURL builds the URL the content is loaded from.
func (e Env) LoadURL(appID, mode, version string) string {
	q := url.Values{}
	q.Set("platform", Platform)
	q.Set("v", version)
	q.Set("appId", appID)
	q.Set("mode", mode)
	q.Set("env", e.Name)
	return e.PageURL() + "?" + q.Encode()
}

// Hosts returns the host[:port] of the SDK and widget origins.
func (e Env) Hosts() []string {
	var hosts []string
	for _, raw := range []string{e.SDKURL, e.WidgetURL} {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			hosts = append(hosts, strings.ToLower(u.Host))
		}
	}
	return hosts
}

func (e Env) String() string {
	return e.Name
}
