// Package xrotate 为文件导出器和日志输出提供按大小轮转的文件写入。
//
// Rotator 定义 Write/Close/Rotate，实现并发安全。当前实现 [NewLumberjack]
// 基于 lumberjack v2。
package xrotate
