package dispatcher

import (
	"crypto/tls"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
)

// HTTPPool hands out REST clients round robin.
type HTTPPool struct {
	clients []*fasthttp.Client
	index   atomic.Uint32
}

// NewHTTPPool builds size clients. A nil dial uses fasthttp's default dialer.
func NewHTTPPool(size int, dial fasthttp.DialFunc) *HTTPPool {
	if size <= 0 {
		size = 1
	}
	clients := make([]*fasthttp.Client, size)

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ClientSessionCache: tls.NewLRUClientSessionCache(128),
	}

	for i := 0; i < size; i++ {
		clients[i] = &fasthttp.Client{
			Name:                "go-antiraid",
			MaxConnsPerHost:     512,
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         5 * time.Second,
			WriteTimeout:        5 * time.Second,
			MaxConnWaitTimeout:  time.Second,
			MaxResponseBodySize: 1 << 20,

			// bans are idempotent, kicks of a departed member answer 404
			MaxIdemponentCallAttempts: 1,

			TLSConfig: tlsConfig,
			Dial:      dial,
		}
	}

	return &HTTPPool{clients: clients}
}

func (hp *HTTPPool) GetClient() *fasthttp.Client {
	i := hp.index.Add(1) - 1
	return hp.clients[int(i)%len(hp.clients)]
}

func (hp *HTTPPool) Size() int {
	return len(hp.clients)
}

func (hp *HTTPPool) CloseIdle() {
	for _, c := range hp.clients {
		c.CloseIdleConnections()
	}
}
