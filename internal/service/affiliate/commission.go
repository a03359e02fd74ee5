// Package affiliate 推广归因与佣金账本服务
package affiliate

import (
	"github.com/dumeirei/affiliate-backend/internal/common/errors"
	"github.com/dumeirei/affiliate-backend/internal/common/utils"
)

// 佣金比例取值范围（百分比）
const (
	MinCommissionRate = 0.0
	MaxCommissionRate = 100.0
)

// ComputeCommission 计算订单佣金
// 纯函数：amount = round2(orderAmount × ratePercent / 100)
// 比例在归因瞬间读取并随返回值冻结到归因记录上，之后推广员比例的调整不回溯已有记录
func ComputeCommission(orderAmount, ratePercent float64) (rate, amount float64) {
	rate = ratePercent
	amount = utils.Round2(orderAmount * ratePercent / 100)
	return rate, amount
}

// ValidateRate 校验佣金比例
func ValidateRate(ratePercent float64) error {
	if ratePercent < MinCommissionRate || ratePercent > MaxCommissionRate {
		return errors.ErrInvalidRate
	}
	return nil
}
