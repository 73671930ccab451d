// Package context 为浏览器助手提供情境上下文引擎。
//
// 本包实现了采集-评分-压缩流水线，用于从多个信号提供者
// （视口、表单状态、导航、性能）收集情境信号，按相关度排序，
// 并压缩到 Token 预算内。主要功能包括：
//
//   - 多提供者并行采集（单个提供者失败不影响整体）
//   - 基于基础优先级、新鲜度和触发来源的相关度评分
//   - 冗余剔除、摘要截断、要点投影三级压缩策略
//   - 组装结果的 TTL 缓存与失效事件通知
//   - 采集统计（次数、平均耗时、缓存命中率）
//
// # 基本用法
//
// 创建管理器并注册提供者：
//
//	manager, err := context.NewManager(context.DefaultManagerConfig())
//	if err != nil {
//	    return err
//	}
//	defer manager.Destroy()
//
//	manager.RegisterProvider(context.NewViewportProvider(snapshotFunc))
//	manager.RegisterProvider(context.NewFormStateProvider(formFunc))
//
//	result, err := manager.GatherContext(ctx, context.GatherOptions{
//	    Trigger:     context.TriggerUserPrompt,
//	    TokenBudget: 2000,
//	})
//
// # 缓存
//
// 指定 CacheKey 后，组装结果会写入缓存；后续相同键的调用
// 直接命中缓存返回（Cached 标志为 true），除非 ForceRefresh：
//
//	result, _ := manager.GatherContext(ctx, context.GatherOptions{
//	    CacheKey: "page:/checkout",
//	})
//
// # 压缩
//
// 结果超出预算时，流水线从分数最低的信号块开始依次应用
// 冗余剔除、摘要截断和要点投影，每步后重新测量，直到
// 累计 Token 数落入预算。提供者名称和时间戳始终原样保留。
package context
