package helpers

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies son los peers cuyo X-Forwarded-For se acepta.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies acepta IPs sueltas o CIDRs.
func ParseTrustedProxies(items []string) (TrustedProxies, error) {
	out := make(TrustedProxies, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if strings.Contains(it, "/") {
			pfx, err := netip.ParsePrefix(it)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", it, err)
			}
			out = append(out, pfx.Masked())
			continue
		}
		addr, err := netip.ParseAddr(it)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", it, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func (t TrustedProxies) contains(a netip.Addr) bool {
	a = a.Unmap()
	for _, p := range t {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// ClientIP devuelve la IP del peer. Sólo si el peer es un proxy de confianza
// se recorre X-Forwarded-For de derecha a izquierda y se toma el primer hop
// que no es de confianza.
func (t TrustedProxies) ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !t.contains(peer) {
		return host
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	client := peer.Unmap()
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			// basura en la cadena: nos quedamos con el último hop válido
			break
		}
		client = hop.Unmap()
		if !t.contains(client) {
			break
		}
	}
	return client.String()
}

// BearerToken devuelve el token de Authorization: Bearer, o "".
func BearerToken(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) < 7 || !strings.EqualFold(ah[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[7:])
}

// IsSafeMethod reporta los métodos que no mutan estado (sin check de CSRF).
func IsSafeMethod(m string) bool {
	switch strings.ToUpper(m) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
