package entity

import "image"

// SampledFrame は解析のために間引き抽出された1フレームです。
// 1回の走査の中でのみ生成・消費され、永続化されません。
type SampledFrame struct {
	Index            int64       // デコード順のフレーム番号（1始まり）
	TimestampSeconds float64     // 動画先頭からの経過秒
	Image            *image.Gray // 縮小済みのグレースケール画像
}
