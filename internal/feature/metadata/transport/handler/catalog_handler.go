// Package handler はmetadataフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"exposure_backend/internal/api"
	"exposure_backend/internal/feature/metadata/domain"
	"exposure_backend/internal/feature/metadata/usecase"
	scanentity "exposure_backend/internal/feature/scan/domain/entity"
)

// CatalogUsecase はカタログ登録のユースケースインターフェースを定義します。
type CatalogUsecase interface {
	UpsertCatalog(ctx context.Context, raw string, meta scanentity.VideoMetadata) error
}

// CatalogHandler は動画カタログのHTTPリクエストを処理します。
type CatalogHandler struct {
	uc CatalogUsecase
}

// NewCatalogHandler はCatalogHandlerの新しいインスタンスを生成します。
func NewCatalogHandler(uc CatalogUsecase) *CatalogHandler {
	return &CatalogHandler{uc: uc}
}

// Upsert は動画参照にメタデータを登録します。
//
// エンドポイント: PUT /v1/catalog/videos/:ref
// ref は動画ID、またはURLエンコードした動画URLです（ルーターの UseRawPath が必要）。
func (h *CatalogHandler) Upsert(c *gin.Context) {
	ref := c.Param("ref")
	if ref == "" {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "動画参照が不正です"})
		return
	}

	var req api.CatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("カタログリクエストのバリデーションに失敗", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "view_count と duration は0以上で指定してください"})
		return
	}

	meta := scanentity.VideoMetadata{
		Title:           req.Title,
		Channel:         req.Channel,
		ViewCount:       req.ViewCount,
		DurationSeconds: req.Duration,
	}
	if err := h.uc.UpsertCatalog(c.Request.Context(), ref, meta); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidReference):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "動画参照が不正です"})
		case errors.Is(err, domain.ErrInvalidMetadata):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "view_count と duration は0以上で指定してください"})
		default:
			slog.Error("カタログ登録に失敗", "error", err, "ref", ref)
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "カタログ登録に失敗しました"})
		}
		return
	}

	c.JSON(http.StatusOK, api.CatalogResponse{
		Ref:       usecase.ParseReference(ref).Key(),
		Title:     req.Title,
		Channel:   req.Channel,
		ViewCount: req.ViewCount,
		Duration:  req.Duration,
	})
}
