package usecase

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // GIFロゴを受け付けるためにデコーダを登録
	_ "image/jpeg" // JPEGロゴを受け付けるためにデコーダを登録
	_ "image/png"  // PNGロゴを受け付けるためにデコーダを登録

	_ "golang.org/x/image/bmp"  // BMPロゴを受け付けるためにデコーダを登録
	_ "golang.org/x/image/webp" // WebPロゴを受け付けるためにデコーダを登録

	"exposure_backend/internal/feature/scan/domain"
)

// DecodeLogo はロゴ画像のバイト列をグレースケール画像に変換します。
// デコードできない場合は domain.ErrUnreadableImage を返します。
func DecodeLogo(data []byte) (*image.Gray, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("logo is empty: %w", domain.ErrUnreadableImage)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadableImage, err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("logo has empty bounds: %w", domain.ErrUnreadableImage)
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray, nil
}
