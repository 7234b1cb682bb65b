package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
	kList
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

func str(key, env string, secret bool, apply func(*Config, string), extract func(Config) string) keySpec {
	return keySpec{
		key: key, typ: kString, env: env, secret: secret,
		apply:   func(cfg *Config, v any) { apply(cfg, v.(string)) },
		extract: func(cfg Config) any { return extract(cfg) },
	}
}

func num(key, env string, apply func(*Config, int), extract func(Config) int) keySpec {
	return keySpec{
		key: key, typ: kInt, env: env,
		apply:   func(cfg *Config, v any) { apply(cfg, v.(int)) },
		extract: func(cfg Config) any { return extract(cfg) },
	}
}

func dur(key, env string, apply func(*Config, time.Duration), extract func(Config) time.Duration) keySpec {
	return keySpec{
		key: key, typ: kDuration, env: env,
		apply:   func(cfg *Config, v any) { apply(cfg, v.(time.Duration)) },
		extract: func(cfg Config) any { return extract(cfg) },
	}
}

var specs = []keySpec{
	str("log.level", "SUSI_LOG_LEVEL", false,
		func(c *Config, v string) { c.Log.Level = v }, func(c Config) string { return c.Log.Level }),
	str("log.file", "SUSI_LOG_FILE", false,
		func(c *Config, v string) { c.Log.File = v }, func(c Config) string { return c.Log.File }),
	num("log.max_size_mb", "SUSI_LOG_MAX_SIZE_MB",
		func(c *Config, v int) { c.Log.MaxSizeMB = v }, func(c Config) int { return c.Log.MaxSizeMB }),
	num("log.max_backups", "SUSI_LOG_MAX_BACKUPS",
		func(c *Config, v int) { c.Log.MaxBackups = v }, func(c Config) int { return c.Log.MaxBackups }),

	str("template", "SUSI_TEMPLATE", false,
		func(c *Config, v string) { c.Template = v }, func(c Config) string { return c.Template }),

	str("trigger.mode", "SUSI_TRIGGER_MODE", false,
		func(c *Config, v string) { c.Trigger.Mode = v }, func(c Config) string { return c.Trigger.Mode }),
	dur("trigger.poll_interval", "SUSI_TRIGGER_POLL_INTERVAL",
		func(c *Config, v time.Duration) { c.Trigger.PollInterval = v }, func(c Config) time.Duration { return c.Trigger.PollInterval }),
	dur("trigger.check_interval", "SUSI_TRIGGER_CHECK_INTERVAL",
		func(c *Config, v time.Duration) { c.Trigger.CheckInterval = v }, func(c Config) time.Duration { return c.Trigger.CheckInterval }),

	str("schedule.image_day", "SUSI_SCHEDULE_IMAGE_DAY", false,
		func(c *Config, v string) { c.Schedule.ImageDay = v }, func(c Config) string { return c.Schedule.ImageDay }),
	str("schedule.image_time", "SUSI_SCHEDULE_IMAGE_TIME", false,
		func(c *Config, v string) { c.Schedule.ImageTime = v }, func(c Config) string { return c.Schedule.ImageTime }),
	str("schedule.instagram_day", "SUSI_SCHEDULE_INSTAGRAM_DAY", false,
		func(c *Config, v string) { c.Schedule.InstagramDay = v }, func(c Config) string { return c.Schedule.InstagramDay }),
	str("schedule.instagram_time", "SUSI_SCHEDULE_INSTAGRAM_TIME", false,
		func(c *Config, v string) { c.Schedule.InstagramTime = v }, func(c Config) string { return c.Schedule.InstagramTime }),

	str("onedrive.folder", "SUSI_ONEDRIVE_FOLDER", false,
		func(c *Config, v string) { c.OneDrive.Folder = v }, func(c Config) string { return c.OneDrive.Folder }),
	str("onedrive.processed_folder", "SUSI_ONEDRIVE_PROCESSED_FOLDER", false,
		func(c *Config, v string) { c.OneDrive.ProcessedFolder = v }, func(c Config) string { return c.OneDrive.ProcessedFolder }),
	str("onedrive.local_download_dir", "SUSI_ONEDRIVE_LOCAL_DOWNLOAD_DIR", false,
		func(c *Config, v string) { c.OneDrive.LocalDownloadDir = v }, func(c Config) string { return c.OneDrive.LocalDownloadDir }),
	str("onedrive.graph_root", "SUSI_ONEDRIVE_GRAPH_ROOT", false,
		func(c *Config, v string) { c.OneDrive.GraphRoot = v }, func(c Config) string { return c.OneDrive.GraphRoot }),
	str("onedrive.client_id", "ONEDRIVE_APPLICATION_ID", false,
		func(c *Config, v string) { c.OneDrive.ClientID = v }, func(c Config) string { return c.OneDrive.ClientID }),
	str("onedrive.client_secret", "ONEDRIVE_CLIENT_SECRET", true,
		func(c *Config, v string) { c.OneDrive.ClientSecret = v }, func(c Config) string { return c.OneDrive.ClientSecret }),
	str("onedrive.tenant_id", "ONEDRIVE_DIRECTORY_ID", false,
		func(c *Config, v string) { c.OneDrive.TenantID = v }, func(c Config) string { return c.OneDrive.TenantID }),
	str("onedrive.refresh_token", "ONEDRIVE_REFRESH_TOKEN", true,
		func(c *Config, v string) { c.OneDrive.RefreshToken = v }, func(c Config) string { return c.OneDrive.RefreshToken }),
	str("onedrive.token_file", "SUSI_ONEDRIVE_TOKEN_FILE", false,
		func(c *Config, v string) { c.OneDrive.TokenFile = v }, func(c Config) string { return c.OneDrive.TokenFile }),

	str("workbook.path", "ONEDRIVE_POSTS_EXCEL_PATH", false,
		func(c *Config, v string) { c.Workbook.Path = v }, func(c Config) string { return c.Workbook.Path }),
	str("workbook.sheet", "ONEDRIVE_POSTS_EXCEL_SHEET_NAME", false,
		func(c *Config, v string) { c.Workbook.Sheet = v }, func(c Config) string { return c.Workbook.Sheet }),

	str("aws.s3_bucket", "SUSI_AWS_S3_BUCKET", false,
		func(c *Config, v string) { c.AWS.S3Bucket = v }, func(c Config) string { return c.AWS.S3Bucket }),
	str("aws.region", "SUSI_AWS_REGION", false,
		func(c *Config, v string) { c.AWS.Region = v }, func(c Config) string { return c.AWS.Region }),
	str("aws.access_key_id", "SUSI_AWS_ACCESS_KEY_ID", true,
		func(c *Config, v string) { c.AWS.AccessKeyID = v }, func(c Config) string { return c.AWS.AccessKeyID }),
	str("aws.secret_access_key", "SUSI_AWS_SECRET_ACCESS_KEY", true,
		func(c *Config, v string) { c.AWS.SecretAccessKey = v }, func(c Config) string { return c.AWS.SecretAccessKey }),

	str("email.provider", "SUSI_EMAIL_PROVIDER", false,
		func(c *Config, v string) { c.Email.Provider = v }, func(c Config) string { return c.Email.Provider }),
	str("email.username", "SUSI_EMAIL_USERNAME", false,
		func(c *Config, v string) { c.Email.Username = v }, func(c Config) string { return c.Email.Username }),
	str("email.recipient", "SUSI_EMAIL_RECIPIENT", false,
		func(c *Config, v string) { c.Email.Recipient = v }, func(c Config) string { return c.Email.Recipient }),
	str("email.smtp_server", "SUSI_EMAIL_SMTP_SERVER", false,
		func(c *Config, v string) { c.Email.SMTPServer = v }, func(c Config) string { return c.Email.SMTPServer }),
	num("email.smtp_port", "SUSI_EMAIL_SMTP_PORT",
		func(c *Config, v int) { c.Email.SMTPPort = v }, func(c Config) int { return c.Email.SMTPPort }),
	str("email.password", "SUSI_EMAIL_PASSWORD", true,
		func(c *Config, v string) { c.Email.Password = v }, func(c Config) string { return c.Email.Password }),
	str("email.gmail_client_id", "SUSI_GMAIL_CLIENT_ID", false,
		func(c *Config, v string) { c.Email.GmailClientID = v }, func(c Config) string { return c.Email.GmailClientID }),
	str("email.gmail_client_secret", "SUSI_GMAIL_CLIENT_SECRET", true,
		func(c *Config, v string) { c.Email.GmailClientSecret = v }, func(c Config) string { return c.Email.GmailClientSecret }),
	str("email.gmail_refresh_token", "SUSI_GMAIL_REFRESH_TOKEN", true,
		func(c *Config, v string) { c.Email.GmailRefreshToken = v }, func(c Config) string { return c.Email.GmailRefreshToken }),

	str("instagram.access_token", "SUSI_INSTAGRAM_ACCESS_TOKEN", true,
		func(c *Config, v string) { c.Instagram.AccessToken = v }, func(c Config) string { return c.Instagram.AccessToken }),
	str("instagram.user_id", "SUSI_INSTAGRAM_USER_ID", false,
		func(c *Config, v string) { c.Instagram.UserID = v }, func(c Config) string { return c.Instagram.UserID }),
	str("instagram.graph_url", "SUSI_INSTAGRAM_GRAPH_URL", false,
		func(c *Config, v string) { c.Instagram.GraphURL = v }, func(c Config) string { return c.Instagram.GraphURL }),
	str("instagram.api_version", "SUSI_INSTAGRAM_API_VERSION", false,
		func(c *Config, v string) { c.Instagram.APIVersion = v }, func(c Config) string { return c.Instagram.APIVersion }),

	str("social.platform", "SUSI_SOCIAL_PLATFORM", false,
		func(c *Config, v string) { c.Social.Platform = v }, func(c Config) string { return c.Social.Platform }),

	str("genai.provider", "SUSI_GENAI_PROVIDER", false,
		func(c *Config, v string) { c.GenAI.Provider = v }, func(c Config) string { return c.GenAI.Provider }),
	str("genai.api_url", "LOCAL_GENAI_API_URL", false,
		func(c *Config, v string) { c.GenAI.APIURL = v }, func(c Config) string { return c.GenAI.APIURL }),
	str("genai.model", "SUSI_GENAI_MODEL", false,
		func(c *Config, v string) { c.GenAI.Model = v }, func(c Config) string { return c.GenAI.Model }),
	dur("genai.timeout", "SUSI_GENAI_TIMEOUT",
		func(c *Config, v time.Duration) { c.GenAI.Timeout = v }, func(c Config) time.Duration { return c.GenAI.Timeout }),
	{
		key: "genai.temperature", typ: kFloat, env: "SUSI_GENAI_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.GenAI.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.GenAI.Temperature },
	},
	num("genai.instagram_max_tokens", "SUSI_GENAI_INSTAGRAM_MAX_TOKENS",
		func(c *Config, v int) { c.GenAI.InstagramMaxTokens = v }, func(c Config) int { return c.GenAI.InstagramMaxTokens }),
	num("genai.linkedin_max_tokens", "SUSI_GENAI_LINKEDIN_MAX_TOKENS",
		func(c *Config, v int) { c.GenAI.LinkedInMaxTokens = v }, func(c Config) int { return c.GenAI.LinkedInMaxTokens }),
	str("genai.anthropic_api_key", "ANTHROPIC_API_KEY", true,
		func(c *Config, v string) { c.GenAI.AnthropicAPIKey = v }, func(c Config) string { return c.GenAI.AnthropicAPIKey }),
	str("genai.anthropic_model", "SUSI_GENAI_ANTHROPIC_MODEL", false,
		func(c *Config, v string) { c.GenAI.AnthropicModel = v }, func(c Config) string { return c.GenAI.AnthropicModel }),

	str("news.provider", "SUSI_NEWS_PROVIDER", false,
		func(c *Config, v string) { c.News.Provider = v }, func(c Config) string { return c.News.Provider }),
	str("news.api_key", "NEWSAPI_KEY", true,
		func(c *Config, v string) { c.News.APIKey = v }, func(c Config) string { return c.News.APIKey }),
	str("news.endpoint", "SUSI_NEWS_ENDPOINT", false,
		func(c *Config, v string) { c.News.Endpoint = v }, func(c Config) string { return c.News.Endpoint }),
	str("news.language", "SUSI_NEWS_LANGUAGE", false,
		func(c *Config, v string) { c.News.Language = v }, func(c Config) string { return c.News.Language }),
	num("news.page_size", "SUSI_NEWS_PAGE_SIZE",
		func(c *Config, v int) { c.News.PageSize = v }, func(c Config) int { return c.News.PageSize }),
	{
		key: "news.feeds", typ: kList, env: "SUSI_NEWS_FEEDS",
		apply:   func(cfg *Config, v any) { cfg.News.Feeds = v.([]string) },
		extract: func(cfg Config) any { return strings.Join(cfg.News.Feeds, ",") },
	},

	num("retry.tries", "SUSI_RETRY_TRIES",
		func(c *Config, v int) { c.Retry.Tries = v }, func(c Config) int { return c.Retry.Tries }),
	dur("retry.delay", "SUSI_RETRY_DELAY",
		func(c *Config, v time.Duration) { c.Retry.Delay = v }, func(c Config) time.Duration { return c.Retry.Delay }),
	{
		key: "retry.backoff", typ: kFloat, env: "SUSI_RETRY_BACKOFF",
		apply:   func(cfg *Config, v any) { cfg.Retry.Backoff = v.(float64) },
		extract: func(cfg Config) any { return cfg.Retry.Backoff },
	},

	str("storage.data_dir", "SUSI_STORAGE_DATA_DIR", false,
		func(c *Config, v string) { c.Storage.DataDir = v }, func(c Config) string { return c.Storage.DataDir }),

	{
		key: "server.enabled", typ: kBool, env: "SUSI_SERVER_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Server.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Server.Enabled },
	},
	num("server.port", "SUSI_SERVER_PORT",
		func(c *Config, v int) { c.Server.Port = v }, func(c Config) int { return c.Server.Port }),
	str("server.token", "SUSI_SERVER_TOKEN", true,
		func(c *Config, v string) { c.Server.Token = v }, func(c Config) string { return c.Server.Token }),
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kList:
			v, ok, err := b.GetStrings(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		default:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok {
				continue
			}
			parsed, err := parseValue(s.typ, v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, v, err)
				continue
			}
			s.apply(cfg, parsed)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}

func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(strings.TrimSpace(raw))
	case kBool:
		return strconv.ParseBool(strings.TrimSpace(raw))
	case kFloat:
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case kDuration:
		return parseDuration(raw)
	case kList:
		return splitList(raw), nil
	default:
		return raw, nil
	}
}

// parseDuration accepts Go duration strings ("90s", "1h") and bare numbers,
// which are read as seconds.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(raw)
}
