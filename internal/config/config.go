package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrMissingRequired is wrapped by Validate when required keys are unset.
var ErrMissingRequired = errors.New("missing required config")

// DefaultPath is the config file used when neither a flag nor SUSI_CONFIG names one.
const DefaultPath = "config.yaml"

type Config struct {
	Log       LogConfig
	Template  string
	Trigger   TriggerConfig
	Schedule  ScheduleConfig
	OneDrive  OneDriveConfig
	Workbook  WorkbookConfig
	AWS       AWSConfig
	Email     EmailConfig
	Instagram InstagramConfig
	Social    SocialConfig
	GenAI     GenAIConfig
	News      NewsConfig
	Retry     RetryConfig
	Storage   StorageConfig
	Server    ServerConfig
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type TriggerConfig struct {
	Mode          string // "polling" or "schedule"
	PollInterval  time.Duration
	CheckInterval time.Duration
}

type ScheduleConfig struct {
	ImageDay     string
	ImageTime    string
	InstagramDay string
	// InstagramTime is when the content workflow (Instagram and LinkedIn text) runs.
	InstagramTime string
}

type OneDriveConfig struct {
	Folder           string
	ProcessedFolder  string
	LocalDownloadDir string
	GraphRoot        string
	ClientID         string
	ClientSecret     string
	TenantID         string
	RefreshToken     string
	TokenFile        string
}

type WorkbookConfig struct {
	Path  string
	Sheet string
}

type AWSConfig struct {
	S3Bucket        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

type EmailConfig struct {
	Provider          string // "gmail" or "smtp"
	Username          string
	Recipient         string
	SMTPServer        string
	SMTPPort          int
	Password          string
	GmailClientID     string
	GmailClientSecret string
	GmailRefreshToken string
}

type InstagramConfig struct {
	AccessToken string
	UserID      string
	GraphURL    string
	APIVersion  string
}

type SocialConfig struct {
	Platform string // "instagram" or "dryrun"
}

type GenAIConfig struct {
	Provider           string // "local" or "anthropic"
	APIURL             string
	Model              string
	Timeout            time.Duration
	Temperature        float64
	InstagramMaxTokens int
	LinkedInMaxTokens  int
	AnthropicAPIKey    string
	AnthropicModel     string
}

type NewsConfig struct {
	Provider string // "newsapi" or "rss"
	APIKey   string
	Endpoint string
	Language string
	PageSize int
	Feeds    []string
}

type RetryConfig struct {
	Tries   int
	Delay   time.Duration
	Backoff float64
}

type StorageConfig struct {
	DataDir string
}

type ServerConfig struct {
	Enabled bool
	Port    int
	Token   string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  2,
			MaxBackups: 5,
		},
		Template: "{title}: {comment}",
		Trigger: TriggerConfig{
			Mode:          "polling",
			PollInterval:  time.Hour,
			CheckInterval: 30 * time.Second,
		},
		Schedule: ScheduleConfig{
			ImageDay:      "Tuesday",
			ImageTime:     "09:00",
			InstagramDay:  "Thursday",
			InstagramTime: "09:00",
		},
		OneDrive: OneDriveConfig{
			LocalDownloadDir: "downloads",
			GraphRoot:        "https://graph.microsoft.com/v1.0",
			TenantID:         "common",
			TokenFile:        filepath.Join(dataDir, "onedrive_token.json"),
		},
		Workbook: WorkbookConfig{
			Path:  "/Documents/SocialMedia/SocialMediaSusi/posts/posts.xlsx",
			Sheet: "posts",
		},
		Email: EmailConfig{
			Provider: "smtp",
			SMTPPort: 587,
		},
		Instagram: InstagramConfig{
			GraphURL:   "https://graph.facebook.com",
			APIVersion: "v19.0",
		},
		Social: SocialConfig{
			Platform: "instagram",
		},
		GenAI: GenAIConfig{
			Provider:           "local",
			Model:              "deepseek/deepseek-r1-0528-qwen3-8b",
			Timeout:            180 * time.Second,
			Temperature:        0.8,
			InstagramMaxTokens: 600,
			LinkedInMaxTokens:  900,
			AnthropicModel:     "claude-3-5-haiku-latest",
		},
		News: NewsConfig{
			Provider: "newsapi",
			Endpoint: "https://newsapi.org/v2/everything",
			Language: "en",
			PageSize: 5,
		},
		Retry: RetryConfig{
			Tries:   3,
			Delay:   2 * time.Second,
			Backoff: 2,
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    4100,
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "susi-data"
		}
	}
	return filepath.Join(dir, "susi")
}

// ResolvePath picks the config file: the explicit path if set, else
// $SUSI_CONFIG, else DefaultPath.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("SUSI_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the YAML config file at path (see ResolvePath), expands ${VAR}
// references, and applies SUSI_* environment overrides on top of defaults.
// A missing file is only an error when the path was given explicitly.
func Load(path string) (Config, error) {
	resolved := ResolvePath(path)
	var b ConfigBackend
	yb, err := newYAMLBackend(resolved)
	if err == nil {
		b = yb
	} else {
		if !errors.Is(err, os.ErrNotExist) || path != "" {
			return Config{}, fmt.Errorf("loading config %s: %w", resolved, err)
		}
		fmt.Fprintf(os.Stderr, "[WARN] config file %s not found. Using defaults and environment.\n", resolved)
		b = emptyBackend{}
	}
	return loadWith(b)
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	if cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(cfg.Storage.DataDir, "susi.log")
	}
	return cfg, nil
}

// Workflow names accepted by Validate.
const (
	WorkflowContent = "content"
	WorkflowImages  = "images"
)

// Validate reports every required key that is unset for the given workflows
// in a single error wrapping ErrMissingRequired.
func (c Config) Validate(workflows ...string) error {
	var missing []string
	need := func(key, val string) {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}

	need("email.recipient", c.Email.Recipient)
	need("email.username", c.Email.Username)
	switch strings.ToLower(c.Email.Provider) {
	case "gmail":
		need("email.gmail_client_id", c.Email.GmailClientID)
		need("email.gmail_refresh_token", c.Email.GmailRefreshToken)
	default:
		need("email.smtp_server", c.Email.SMTPServer)
	}
	need("onedrive.client_id", c.OneDrive.ClientID)

	for _, wf := range workflows {
		switch wf {
		case WorkflowImages:
			need("template", c.Template)
			need("onedrive.folder", c.OneDrive.Folder)
			need("onedrive.processed_folder", c.OneDrive.ProcessedFolder)
			need("aws.s3_bucket", c.AWS.S3Bucket)
			need("aws.region", c.AWS.Region)
			if strings.ToLower(c.Social.Platform) == "instagram" {
				need("instagram.access_token", c.Instagram.AccessToken)
				need("instagram.user_id", c.Instagram.UserID)
			}
		case WorkflowContent:
			need("workbook.path", c.Workbook.Path)
			need("workbook.sheet", c.Workbook.Sheet)
			if strings.ToLower(c.GenAI.Provider) == "anthropic" {
				need("genai.anthropic_api_key", c.GenAI.AnthropicAPIKey)
			} else {
				need("genai.api_url", c.GenAI.APIURL)
			}
			if strings.ToLower(c.News.Provider) == "rss" {
				if len(c.News.Feeds) == 0 {
					missing = append(missing, "news.feeds")
				}
			} else {
				need("news.api_key", c.News.APIKey)
			}
		default:
			return fmt.Errorf("unknown workflow %q", wf)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, ", "))
	}
	return nil
}
