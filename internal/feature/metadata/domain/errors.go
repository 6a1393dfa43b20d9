package domain

import "errors"

var (
	// ErrMetadataUnavailable はどのプロバイダーからもメタデータを取得できなかったことを示します。
	ErrMetadataUnavailable = errors.New("video metadata unavailable")
	// ErrNotFound はカタログに該当する動画が登録されていないことを示します。
	ErrNotFound = errors.New("catalog entry not found")
	// ErrUnsupportedReference はプロバイダーが扱えない参照形式であることを示します。
	ErrUnsupportedReference = errors.New("unsupported video reference")
	// ErrInvalidReference は動画参照が空、または解釈できないことを示します。
	ErrInvalidReference = errors.New("invalid video reference")
	// ErrInvalidMetadata は再生回数や尺が負の値であることを示します。
	ErrInvalidMetadata = errors.New("invalid video metadata")
	// ErrStreamUnavailable は動画参照から直接ダウンロードできるストリームが得られないことを示します。
	ErrStreamUnavailable = errors.New("no downloadable video stream")
)
