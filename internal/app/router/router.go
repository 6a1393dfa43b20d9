package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	metadatahandler "exposure_backend/internal/feature/metadata/transport/handler"
	scanhandler "exposure_backend/internal/feature/scan/transport/handler"
	"exposure_backend/internal/platform/http/handler"
	jwtmw "exposure_backend/internal/platform/jwt"
)

// NewRouter はルーティングを構成したgin.Engineを返します。
// catalog が nil の場合、カタログ登録のルートは登録しません。
func NewRouter(scan *scanhandler.ScanHandler, catalog *metadatahandler.CatalogHandler,
	checks map[string]handler.Check) *gin.Engine {
	r := gin.Default()
	// エンコード済みURLを動画参照としてパスに含めるため
	r.UseRawPath = true

	// ブラウザの管理画面から直接呼ばれるため全オリジンを許可
	r.Use(cors.Default())

	// 認証不要
	// 導通確認用
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", handler.Health)
	// 依存先の疎通確認
	r.GET("/readyz", handler.Ready(checks))

	// 認証必須のルート
	v1 := r.Group("/v1")
	v1.Use(jwtmw.AuthRequired())
	{
		v1.POST("/scan", jwtmw.RequireScope(jwtmw.ScopeScan), scan.Scan)
		if catalog != nil {
			v1.PUT("/catalog/videos/:ref", jwtmw.RequireScope(jwtmw.ScopeCatalogWrite), catalog.Upsert)
		}
	}

	return r
}
