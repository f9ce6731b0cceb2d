package fetch

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/proxy"

	"github.com/blobprobe/blobprobe/internal/engine/types"
	"github.com/blobprobe/blobprobe/internal/utils"
)

// NewClient builds the HTTP client used for payload downloads.
// No overall timeout is set: a large body may legitimately take minutes.
func NewClient(runtime *types.RuntimeConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   types.DialTimeout,
		KeepAlive: types.KeepAliveDuration,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          types.DefaultMaxIdleConns,
		IdleConnTimeout:       types.DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   types.DefaultTLSHandshakeTimeout,
		ResponseHeaderTimeout: runtime.GetResponseHeaderTimeout(),
		ExpectContinueTimeout: types.DefaultExpectContinueTimeout,
	}

	// Configure proxy if runtime config is provided
	if runtime != nil && runtime.ProxyURL != "" {
		parsedURL, err := url.Parse(runtime.ProxyURL)
		if err != nil {
			utils.Debug("Fetcher: Invalid proxy URL %s: %v", runtime.ProxyURL, err)
			transport.Proxy = http.ProxyFromEnvironment
		} else if strings.HasPrefix(parsedURL.Scheme, "socks5") {
			utils.Debug("Fetcher: Using SOCKS5 proxy: %s", runtime.ProxyURL)
			var auth *proxy.Auth
			if parsedURL.User != nil {
				password, _ := parsedURL.User.Password()
				auth = &proxy.Auth{User: parsedURL.User.Username(), Password: password}
			}
			socks, dialErr := proxy.SOCKS5("tcp", parsedURL.Host, auth, dialer)
			if dialErr != nil {
				utils.Debug("Fetcher: Failed to create SOCKS5 dialer: %v", dialErr)
				transport.Proxy = http.ProxyFromEnvironment
			} else if cd, ok := socks.(proxy.ContextDialer); ok {
				transport.DialContext = cd.DialContext
			} else {
				transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
					return socks.Dial(network, addr)
				}
			}
		} else {
			transport.Proxy = http.ProxyURL(parsedURL)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	// Configure TLS if runtime config is provided
	if runtime != nil && runtime.SkipTLSVerification {
		utils.Debug("Fetcher: TLS verification disabled")
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &http.Client{
		Timeout:   0,
		Transport: transport,
	}
}
