package http

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// ErrForbiddenAddress はダウンロード先が内部ネットワークのアドレスであることを示します。
var ErrForbiddenAddress = errors.New("destination address is not public")

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
}

// NewHTTPClient はメタデータ取得などの短い外部API呼び出し用のHTTPクライアントを作成します。
//
// 注意:
//   - http.DefaultClientにはタイムアウトがないため、常にカスタムクライアントを使用すること
//   - timeout はリクエスト全体（本文の読み込みを含む）に適用される
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: newTransport()}
}

// NewDownloadClient は動画ファイルのダウンロード用クライアントを作成します。
// 本文の転送時間は動画サイズに比例するため全体タイムアウトは設定せず、
// 応答ヘッダーまでの待ち時間だけを制限します。全体の上限は呼び出し側のcontextで管理します。
// ループバック・プライベート・リンクローカル宛ての接続は拒否します（リダイレクト先も同様）。
func NewDownloadClient(headerTimeout time.Duration) *http.Client {
	t := newTransport()
	t.DialContext = (&net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   publicOnly,
	}).DialContext
	t.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: t}
}

// publicOnly は名前解決後の接続先アドレスを検査するDialer.Controlです。
func publicOnly(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || !IsPublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, host)
	}
	return nil
}

// IsPublicIP はインターネット上の宛先として許可するアドレスかを返します。
func IsPublicIP(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		ip = ip4
		// 100.64.0.0/10（CGNAT）
		if ip[0] == 100 && ip[1]&0xc0 == 64 {
			return false
		}
	}
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast())
}
