package config

import "time"

// ============================================================================
//                              可达性校验配置
// ============================================================================

// NetcheckConfig 网络可达性校验配置
type NetcheckConfig struct {
	// Resolvers 高可用解析器端点，任一成功即判定可达
	// 默认值: ["8.8.8.8:53", "1.1.1.1:53", "208.67.222.222:53"]
	Resolvers []string

	// Timeout 单个端点的探测超时
	// 默认值: 3s
	Timeout time.Duration

	// QueryName 确认查询使用的域名（仅 TCP 连通会被强制门户欺骗）
	// 默认值: "www.google.com."
	QueryName string
}

// DefaultNetcheckConfig 返回默认配置
func DefaultNetcheckConfig() NetcheckConfig {
	return NetcheckConfig{
		Resolvers: []string{
			"8.8.8.8:53",        // Google DNS
			"1.1.1.1:53",        // Cloudflare DNS
			"208.67.222.222:53", // OpenDNS
		},
		Timeout:   3 * time.Second,
		QueryName: "www.google.com.",
	}
}

// Validate 校验配置，就地修正无效值
func (c *NetcheckConfig) Validate() error {
	def := DefaultNetcheckConfig()
	if len(c.Resolvers) == 0 {
		c.Resolvers = def.Resolvers
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.QueryName == "" {
		c.QueryName = def.QueryName
	}
	return nil
}

// WithResolvers 设置解析器端点列表
func (c NetcheckConfig) WithResolvers(resolvers []string) NetcheckConfig {
	c.Resolvers = resolvers
	return c
}
