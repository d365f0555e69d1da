package config

import "errors"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if g.ScratchPath == "" {
		return newFieldError("ScratchPath", "不能为空")
	}
	if g.MaxArtifactSize <= 0 {
		return newFieldError("MaxArtifactSize", "必须大于 0")
	}
	if g.ArtifactTTL.DurationValue() <= 0 {
		return newFieldError("ArtifactTTL", "必须大于 0")
	}
	if g.SweepInterval.DurationValue() <= 0 {
		return newFieldError("SweepInterval", "必须大于 0")
	}
	if g.FetchTimeout.DurationValue() <= 0 {
		return newFieldError("FetchTimeout", "必须大于 0")
	}
	if g.MaxFetchRetries < 0 {
		return newFieldError("MaxFetchRetries", "不能为负数")
	}
	if g.InitialBackoff.DurationValue() <= 0 {
		return newFieldError("InitialBackoff", "必须大于 0")
	}

	return nil
}
