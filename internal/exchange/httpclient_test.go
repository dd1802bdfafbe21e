package exchange

import (
	"net/http"
	"testing"
)

func TestNewHTTPClient_AppliesConfig(t *testing.T) {
	cfg := DefaultHTTPClientConfig()
	client := NewHTTPClient(cfg)

	if client.Timeout != cfg.TotalTimeout {
		t.Errorf("Timeout: ожидали %v, получили %v", cfg.TotalTimeout, client.Timeout)
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("ожидали *http.Transport, получили %T", client.Transport)
	}
	if transport.MaxIdleConnsPerHost != cfg.MaxIdleConnsPerHost {
		t.Errorf("MaxIdleConnsPerHost: ожидали %d, получили %d",
			cfg.MaxIdleConnsPerHost, transport.MaxIdleConnsPerHost)
	}
	if transport.ResponseHeaderTimeout != cfg.HeaderTimeout {
		t.Errorf("ResponseHeaderTimeout: ожидали %v, получили %v",
			cfg.HeaderTimeout, transport.ResponseHeaderTimeout)
	}
}

func TestGetGlobalHTTPClient_SameInstance(t *testing.T) {
	a := GetGlobalHTTPClient()
	b := GetGlobalHTTPClient()
	if a != b {
		t.Error("глобальный клиент должен создаваться один раз")
	}
}
