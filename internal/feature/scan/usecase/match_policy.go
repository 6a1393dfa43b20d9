package usecase

// MatchPolicy は近傍探索結果からフレームごとの「表示あり」判定を行う規則です。
type MatchPolicy struct {
	Ratio          float64 // 最良候補の距離が2番目の候補の距離のこの倍率未満なら採用
	MinGoodMatches int     // 採用数がこの値を超えたら表示ありと判定
}

// CountGoodMatches は比率テストを通過した候補数を返します。
// neighbors の各要素は、ロゴの1記述子に対するフレーム記述子の近傍距離（昇順）です。
// 近傍が2つ未満の候補は比較できないため採用しません。
func (p MatchPolicy) CountGoodMatches(neighbors [][]float64) int {
	good := 0
	for _, n := range neighbors {
		if len(n) < 2 {
			continue
		}
		if n[0] < p.Ratio*n[1] {
			good++
		}
	}
	return good
}

// Visible は採用数が閾値を超えるかどうかを返します。
func (p MatchPolicy) Visible(neighbors [][]float64) bool {
	return p.CountGoodMatches(neighbors) > p.MinGoodMatches
}
