package evaluator

import "atma-secure/internal/models"

// Evaluate 危险判定（决策表）
//
//	hand  fear  ->  verdict
//	 no    no       None
//	 yes   no       Hand
//	 no    yes      Fear
//	 yes   yes      Both
//
// 分类错误已由适配器折叠为 "error" 标签，视为非恐惧。
func Evaluate(obs models.Observation) models.Verdict {
	hand, fear := obs.HandPresent, obs.IsFear()

	kind := models.VerdictNone
	switch {
	case hand && fear:
		kind = models.VerdictBoth
	case hand:
		kind = models.VerdictHand
	case fear:
		kind = models.VerdictFear
	}

	return models.Verdict{Kind: kind, Observation: obs}
}
