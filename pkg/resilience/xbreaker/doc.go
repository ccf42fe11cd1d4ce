// Package xbreaker 为导出器提供熔断保护。
//
// 下游收集器持续不可用时，熔断器快速失败，避免每个批次都走完整的重试退避。
// 熔断错误实现 Retryable() == false，与 xretry 组合时不会被重试。
//
// # 状态
//
//   - StateClosed：正常放行，统计失败
//   - StateOpen：直接返回 ErrOpenState
//   - StateHalfOpen：放行有限请求探测恢复
//
// # 熔断策略
//
//   - ConsecutiveFailuresPolicy：连续失败 N 次后熔断
//
// 成功判定由 SuccessPolicy 决定。导出场景下部分成功和永久性错误
// 说明收集器在线，不计入失败。
//
// 底层使用 [sony/gobreaker/v2]。
//
// [sony/gobreaker/v2]: https://github.com/sony/gobreaker
package xbreaker
