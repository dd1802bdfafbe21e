// Package exchange предоставляет клиент фьючерсной биржи для торгового движка.
package exchange

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

// HTTPClientConfig - настройки HTTP клиента для биржевых запросов.
// Вход размещается сразу после алерта, поэтому соединения держим
// тёплыми: пул Keep-Alive избавляет от TCP/TLS handshake на каждый ордер
type HTTPClientConfig struct {
	ConnectTimeout time.Duration // установка TCP соединения
	HeaderTimeout  time.Duration // ожидание заголовков ответа
	TotalTimeout   time.Duration // общий потолок запроса

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	TLSHandshakeTimeout time.Duration
}

// DefaultHTTPClientConfig возвращает настройки для REST API Binance Futures.
// Потолок запроса перекрывает recvWindow подписанных запросов
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		ConnectTimeout: 5 * time.Second,
		HeaderTimeout:  10 * time.Second,
		TotalTimeout:   30 * time.Second,

		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout: 5 * time.Second,
	}
}

// NewHTTPClient создаёт HTTP клиент с connection pooling под биржевой REST
func NewHTTPClient(cfg HTTPClientConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,

		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},

		// Ответы биржи маленькие, сжатие только добавляет latency
		DisableCompression:    true,
		ForceAttemptHTTP2:     true,
		ResponseHeaderTimeout: cfg.HeaderTimeout,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.TotalTimeout,
	}
}

// Глобальный клиент: один пул соединений на процесс
var (
	globalClient     *http.Client
	globalClientOnce sync.Once
)

// GetGlobalHTTPClient возвращает общий HTTP клиент с настройками по умолчанию
func GetGlobalHTTPClient() *http.Client {
	globalClientOnce.Do(func() {
		globalClient = NewHTTPClient(DefaultHTTPClientConfig())
	})
	return globalClient
}

// CloseGlobalClient закрывает idle соединения глобального клиента.
// Вызывается при graceful shutdown
func CloseGlobalClient() {
	if globalClient == nil {
		return
	}
	if transport, ok := globalClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
