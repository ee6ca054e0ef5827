package quality

import "regexp"

// ============================================================================
//                              日志行分类
// ============================================================================

// 每类错误对应多个模式，全部大小写不敏感。
// 模式覆盖 xray / sing-box 两类传输内核的 stderr 输出。
var (
	timeoutPatterns = compilePatterns([]string{
		`\[Error\].*timeout`,
		`dial tcp.*i/o timeout`,
		`context deadline exceeded`,
		`operation timed out`,
	})

	connectionResetPatterns = compilePatterns([]string{
		`connection reset by peer`,
		`broken pipe`,
		`connection refused`,
		`connection.*(?:dropped|closed|lost)`,
		`connection.*error`,
		`failed to process outbound traffic`,
		`failed to find an available destination`,
		`failed to open connection`,
		`failed to dial`,
		`failed to transfer response payload`,
	})

	dnsFailurePatterns = compilePatterns([]string{
		`dns.*lookup.*timeout`,
		`no such host`,
		`dns.*failure`,
		`process DNS packet.*bad`,
		`dns.*bad rdata`,
		`dns: buffer size too small`,
		`dns: message size too large`,
		`dns: exchange failed`,
	})

	tlsFailurePatterns = compilePatterns([]string{
		`tls.*handshake.*timeout`,
		`tls.*handshake.*failed`,
		`certificate.*invalid`,
		`tls: bad record MAC`,
		`tls: bad certificate`,
		`XTLS rejected`,
	})

	successPatterns = compilePatterns([]string{
		`connection established`,
		`connected to`,
		`tunnel.*opened`,
		`handshake completed`,
	})
)

// compilePatterns 编译一组大小写不敏感的正则
func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(`(?i)`+p))
	}
	return compiled
}

// matchAny 判断行是否命中任一模式
func matchAny(patterns []*regexp.Regexp, line string) bool {
	for _, re := range patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
