package veilrules

import (
	"github.com/varalys/veil/internal/types"
	"github.com/varalys/veil/internal/validate"
)

// Builtin returns the in-process rule table. Each rule is a provider
// regex (or, for providers whose key shape is generic, a combined
// keyword+value pattern) plus an optional structural validator run
// against the raw capture before a match is kept.
func Builtin() *Set {
	s := NewSet()
	for _, r := range builtinRules {
		if err := s.Add(r); err != nil {
			panic(err)
		}
	}
	return s
}

var builtinRules = []*Rule{
	// --- cloud providers ---
	compile("creds.aws.access_key_id", `\bAKIA[0-9A-Z]{16}\b`, "AWS access key id", types.SevHigh, "cloud", []string{"critical"}, 2,
		func(c string) bool { return validate.LooksLikeAWSAccessKey(c) }),
	compile("creds.aws.secret_access_key", `(?i)(?:aws_secret_access_key|aws_secret_key|secretKey)["'\s:=]+([A-Za-z0-9/+=]{40})`, "AWS secret access key", types.SevCritical, "cloud", []string{"critical"}, 2, nil),
	compile("creds.gcp.api_key", `\bAIza[0-9A-Za-z_-]{35}\b`, "Google API key", types.SevHigh, "cloud", []string{"critical"}, 1, nil),
	compile("creds.gcp.service_account", `"type":\s*"service_account"`, "GCP service account JSON key", types.SevCritical, "cloud", []string{"critical"}, 0, nil),
	compile("creds.azure.storage_conn", `(?i)AccountName=[^;\s]+;AccountKey=([A-Za-z0-9+/=]{80,});`, "Azure storage connection string", types.SevCritical, "cloud", []string{"critical"}, 1, nil),
	compile("creds.azure.sas_url", `https?://[A-Za-z0-9.-]+\.core\.windows\.net/[^?]+\?[^\s]*sig=[^\s&]+[^\s]*sv=[^\s&]+|https?://[A-Za-z0-9.-]+\.core\.windows\.net/[^?]+\?[^\s]*sv=[^\s&]+[^\s]*sig=[^\s&]+`, "Azure SAS URL", types.SevHigh, "cloud", nil, 1, nil),
	compile("creds.azure.openai_key", `(?i)(?:azure_openai|AZURE_OPENAI_API_KEY|api-key)\S{0,40}?[:=]\s*['"]?[A-Za-z0-9]{32,}['"]?`, "Azure OpenAI key", types.SevHigh, "ai", nil, 1, nil),
	compile("creds.digitalocean.pat", `\bdop_v1_[a-f0-9]{64}\b`, "DigitalOcean personal access token", types.SevHigh, "cloud", nil, 1, nil),
	compile("creds.flyio.token", `\bflyv1_[A-Za-z0-9_-]{43,}\b`, "Fly.io API token", types.SevHigh, "cloud", nil, 1, nil),
	compile("creds.netlify.token", `\bnf_[A-Za-z0-9]{20,}\b`, "Netlify access token", types.SevHigh, "cloud", nil, 1, nil),
	compile("creds.netlify.build_hook", `https://api\.netlify\.com/build_hooks/[A-Za-z0-9]{20,}`, "Netlify build hook URL", types.SevMedium, "cloud", nil, 1, nil),
	compile("creds.vercel.token", `\b(?:vercel_[A-Za-z0-9]{24,}|vc\w?_[A-Za-z0-9_-]{20,})\b`, "Vercel token", types.SevHigh, "cloud", nil, 1, nil),
	compile("creds.render.api_key", `\brnd_[A-Za-z0-9]{32,}\b`, "Render API key", types.SevHigh, "cloud", nil, 1, nil),
	compile("creds.heroku.api_key", `(?i)heroku(?:[_\s-]*api[_\s-]*key)?[\s:="]+([A-Za-z0-9_-]{32,})`, "Heroku API key", types.SevHigh, "cloud", nil, 1, nil),
	compile("creds.databricks.token", `\bdapi[A-Za-z0-9]{26,40}\b`, "Databricks token", types.SevHigh, "cloud", nil, 1, nil),

	// --- source control ---
	compile("creds.github.token", `g(?:hp|ho|hu|hs|hr)_[A-Za-z0-9]{36}`, "GitHub token", types.SevCritical, "vcs", []string{"critical"}, 1,
		func(c string) bool { return validate.LooksLikeGitHubToken(c) }),
	compile("creds.gitlab.pat", `\bglpat-[A-Za-z0-9_-]{20}\b`, "GitLab personal access token", types.SevHigh, "vcs", nil, 1, nil),
	compile("creds.git.url_credentials", `https?://[^:\s]+:[^@\s]+@[^\s]+`, "Credentials embedded in a git remote URL", types.SevHigh, "vcs", nil, 1, nil),
	compile("creds.npm.token", `\bnpm_[A-Za-z0-9]{36}\b`, "npm access token", types.SevHigh, "vcs", nil, 1, nil),
	compile("creds.npmrc.auth_token", `(?:^|\s)[^\s]*:_authToken=\S+`, "npmrc auth token", types.SevHigh, "vcs", nil, 1, nil),
	compile("creds.docker.config_auth", `"auth"\s*:\s*"[A-Za-z0-9+/=]{12,}"`, "Docker config.json auth blob", types.SevMedium, "vcs", nil, 1, nil),
	compile("creds.dockerhub.pat", `\bdckr_pat_[A-Za-z0-9]{64}\b`, "Docker Hub personal access token", types.SevHigh, "vcs", nil, 1, nil),
	compile("creds.rubygems.api_key", `:rubygems_api_key:\s*\S+`, "RubyGems API key", types.SevHigh, "vcs", nil, 1, nil),
	compile("creds.pypi.token", `\bpypi-[A-Za-z0-9_-]{50,}\b`, "PyPI upload token", types.SevHigh, "vcs", nil, 1, nil),
	compile("creds.snyk.token", `\bsnyk_[A-Za-z0-9]{30,}\b`, "Snyk token", types.SevHigh, "vcs", nil, 1, nil),
	compile("creds.terraform_cloud.token", `\btf[ec]\.[A-Za-z0-9]{30,}\b`, "Terraform Cloud token", types.SevHigh, "vcs", nil, 1, nil),
	compile("creds.kaggle.json_key", `"key"\s*:\s*"[A-Za-z0-9_-]{32}"`, "Kaggle API key", types.SevMedium, "vcs", nil, 1, nil),

	// --- AI / ML providers ---
	compile("creds.openai.key", `\bsk-[A-Za-z0-9]{32,}\b`, "OpenAI API key", types.SevCritical, "ai", []string{"critical"}, 1,
		func(c string) bool { return validate.LooksLikeOpenAIKey(c) }),
	compile("creds.anthropic.key", `\bsk-ant-[A-Za-z0-9_-]{30,}\b`, "Anthropic API key", types.SevCritical, "ai", []string{"critical"}, 1, nil),
	compile("creds.openrouter.key", `\bsk-or-v1-[A-Za-z0-9_-]{20,}\b`, "OpenRouter API key", types.SevHigh, "ai", nil, 1, nil),
	compile("creds.groq.key", `\bgsk_[A-Za-z0-9]{30,}\b`, "Groq API key", types.SevHigh, "ai", nil, 1, nil),
	compile("creds.mistral.key", `(?i)(?:mistral|MISTRAL_API_KEY)\S{0,40}?[:=]\s*['"]?[A-Za-z0-9]{32,}['"]?`, "Mistral API key", types.SevHigh, "ai", nil, 1, nil),
	compile("creds.cohere.key", `(?i)(?:cohere|COHERE_API_KEY)\S{0,40}?[:=]\s*['"]?[A-Za-z0-9]{32,}['"]?`, "Cohere API key", types.SevHigh, "ai", nil, 1, nil),
	compile("creds.ai21.key", `(?i)(?:ai21|AI21_API_KEY)\S{0,40}?[:=]\s*['"]?[A-Za-z0-9]{32,}['"]?`, "AI21 API key", types.SevHigh, "ai", nil, 1, nil),
	compile("creds.huggingface.token", `\bhf_[A-Za-z0-9]{35,}\b`, "HuggingFace access token", types.SevHigh, "ai", nil, 1, nil),
	compile("creds.replicate.token", `\br8_[A-Za-z0-9]{30,}\b`, "Replicate API token", types.SevHigh, "ai", nil, 1, nil),
	compile("creds.perplexity.key", `\bpplx-[A-Za-z0-9]{30,}\b`, "Perplexity API key", types.SevHigh, "ai", nil, 1, nil),
	compile("creds.stability.key", `(?i)(?:stability|STABILITY_API_KEY)\S{0,40}?[:=]\s*['"]?sk-[A-Za-z0-9]{20,}['"]?`, "Stability AI API key", types.SevHigh, "ai", nil, 1, nil),
	compile("creds.wandb.key", `(?i)(?:WANDB_API_KEY|weights\s*&\s*biases|wandb)\S{0,40}?[:=]\s*['"]?[A-Za-z0-9]{32,64}['"]?`, "Weights & Biases API key", types.SevHigh, "ai", nil, 1, nil),
	compile("creds.pinecone.key", `(?i)(?:PINECONE_API_KEY|pinecone)\S{0,40}?[:=]\s*['"]?[A-Za-z0-9-]{20,}['"]?`, "Pinecone API key", types.SevHigh, "ai", nil, 1, nil),
	compile("creds.qdrant.key", `(?i)(?:QDRANT_API_KEY|qdrant)\S{0,40}?[:=]\s*['"]?[A-Za-z0-9._-]{20,}['"]?`, "Qdrant API key", types.SevHigh, "ai", nil, 1, nil),
	compile("creds.weaviate.key", `(?i)(?:WEAVIATE_API_KEY|weaviate)\S{0,40}?[:=]\s*['"]?[A-Za-z0-9]{20,}['"]?`, "Weaviate API key", types.SevHigh, "ai", nil, 1, nil),

	// --- messaging / collaboration ---
	compile("creds.slack.token", `xox[abprs]-[A-Za-z0-9-]{10,48}`, "Slack token", types.SevCritical, "messaging", []string{"critical"}, 1, nil),
	compile("creds.slack.webhook", `https://hooks\.slack\.com/services/[A-Z0-9]{9,}/[A-Z0-9]{9,}/[A-Za-z0-9]{24,}`, "Slack incoming webhook URL", types.SevMedium, "messaging", nil, 1, nil),
	compile("creds.discord.bot_token", `\b[MN][A-Za-z\d]{23}\.[\w-]{6}\.[\w-]{27}\b`, "Discord bot token", types.SevHigh, "messaging", nil, 1, nil),
	compile("creds.discord.webhook", `https://discord\.com/api/webhooks/\d+/[A-Za-z0-9_-]+`, "Discord webhook URL", types.SevMedium, "messaging", nil, 1, nil),
	compile("creds.telegram.bot_token", `\b\d{9,10}:[A-Za-z0-9_-]{35,}\b`, "Telegram bot token", types.SevHigh, "messaging", nil, 1, nil),
	compile("creds.twilio.account_sid", `\bAC[0-9a-fA-F]{32}\b`, "Twilio account SID", types.SevMedium, "messaging", nil, 1, nil),
	compile("creds.twilio.auth_token", `(?i)(?:twilio|tw[_-]?auth|tw[_-]?token|account[_-]?sid|auth[_-]?token)\S{0,40}?[:=]\s*['"]?[0-9a-fA-F]{32}['"]?`, "Twilio auth token", types.SevHigh, "messaging", nil, 1, nil),
	compile("creds.sendgrid.key", `\bSG\.[A-Za-z0-9_-]{16}\.[A-Za-z0-9_-]{32,}\b`, "SendGrid API key", types.SevHigh, "messaging", nil, 1, nil),
	compile("creds.mailgun.key", `\bkey-[0-9a-f]{32}\b`, "Mailgun API key", types.SevHigh, "messaging", nil, 1, nil),
	compile("creds.webhook.zapier", `https://hooks\.zapier\.com/hooks/catch/\d+/[A-Za-z0-9]+`, "Zapier webhook URL", types.SevLow, "messaging", []string{"low_risk"}, 1, nil),
	compile("creds.webhook.ifttt", `https://maker\.ifttt\.com/use/[A-Za-z0-9_-]+`, "IFTTT webhook URL", types.SevLow, "messaging", []string{"low_risk"}, 1, nil),

	// --- payments / commerce ---
	compile("creds.stripe.live_key", `sk_live_[A-Za-z0-9]{24,}`, "Stripe live secret key", types.SevCritical, "payments", []string{"critical"}, 1, nil),
	compile("creds.stripe.webhook_secret", `\bwhsec_[A-Za-z0-9]{16,}\b`, "Stripe webhook signing secret", types.SevHigh, "payments", nil, 1, nil),
	compile("creds.shopify.token", `\bshp(?:at|ua|ss)_[a-f0-9]{32,}\b`, "Shopify access token", types.SevHigh, "payments", nil, 1, nil),

	// --- infra / observability ---
	compile("creds.cloudflare.token", `(?i)(?:cloudflare|CF_API_TOKEN|CF_API_KEY|CLOUDFLARE_)\S{0,40}?[:=]\s*['"]?[A-Za-z0-9]{40,}['"]?`, "Cloudflare API token", types.SevHigh, "infra", nil, 1, nil),
	compile("creds.datadog.api_key", `(?i)(?:datadog|DD_API_KEY)\S{0,40}?[:=]\s*['"]?[0-9a-fA-F]{32}['"]?`, "Datadog API key", types.SevHigh, "observability", nil, 1, nil),
	compile("creds.datadog.app_key", `(?i)(?:datadog|DD_APP_KEY)\S{0,40}?[:=]\s*['"]?[0-9a-fA-F]{40}['"]?`, "Datadog application key", types.SevHigh, "observability", nil, 1, nil),
	compile("creds.newrelic.key", `\b(?:NRAK|NRAL|NRII|NRAA)-[A-Z0-9]{27,}\b`, "New Relic API key", types.SevHigh, "observability", nil, 1, nil),
	compile("creds.sentry.dsn", `https://[0-9a-f]{32}@o\d+\.ingest\.sentry\.io/\d+`, "Sentry DSN", types.SevLow, "observability", []string{"low_risk"}, 1, nil),
	compile("creds.sentry.auth_token", `\bsntrys_[A-Za-z0-9_-]{40,}\b`, "Sentry auth token", types.SevHigh, "observability", nil, 1, nil),
	compile("creds.posthog.project_key", `\bphc_[A-Za-z0-9]{32}\b`, "PostHog project API key", types.SevLow, "observability", []string{"low_risk"}, 1, nil),
	compile("creds.posthog.personal_key", `\bphx_[A-Za-z0-9]{32}\b`, "PostHog personal API key", types.SevHigh, "observability", nil, 1, nil),

	// --- data / storage ---
	compile("creds.db.postgres_uri", `\bpostgres(?:ql)?://[^\s:@/]+:[^\s@/]+@[^\s/]+/[^\s?]+`, "Postgres connection URI with credentials", types.SevHigh, "data", nil, 1, nil),
	compile("creds.db.mysql_uri", `\bmysql://[^\s:@/]+:[^\s@/]+@[^\s/]+/[^\s?]+`, "MySQL connection URI with credentials", types.SevHigh, "data", nil, 1, nil),
	compile("creds.db.mongo_uri", `\bmongodb(?:\+srv)?://[^\s:@/]+:[^\s@/]+@[^\s/]+/[^\s?]+`, "MongoDB connection URI with credentials", types.SevHigh, "data", nil, 1, nil),
	compile("creds.db.redis_uri", `\bredis(?:\+ssl)?://:[^@\s]+@`, "Redis connection URI with password", types.SevHigh, "data", nil, 1, nil),
	compile("creds.db.amqp_uri", `\bamqps?://[^:/\s]+:[^@\s]+@`, "AMQP connection URI with credentials", types.SevHigh, "data", nil, 1, nil),
	compile("creds.db.sqlserver_uri", `\bsqlserver://[^:/\s]+:[^@\s]+@`, "SQL Server connection URI with credentials", types.SevHigh, "data", nil, 1, nil),
	compile("creds.prisma.data_proxy_url", `\bprisma://[A-Za-z0-9._-]+/[^ \t\r\n'"<>]+`, "Prisma Data Proxy URL with embedded key", types.SevHigh, "data", nil, 1, nil),
	compile("creds.supabase.service_role_key", `(?i)SUPABASE_SERVICE_ROLE_KEY\S{0,40}?[:=]\s*['"]?[A-Za-z0-9._-]{16,}['"]?`, "Supabase service role key", types.SevCritical, "data", []string{"critical"}, 1, nil),
	compile("creds.hasura.admin_secret", `(?i)HASURA_GRAPHQL_ADMIN_SECRET\S{0,40}?[:=]\s*['"]?[^'"\s]{16,}['"]?`, "Hasura admin secret", types.SevCritical, "data", []string{"critical"}, 1, nil),
	compile("creds.okta.ssws_token", `\bSSWS\s+[A-Za-z0-9._-]{40,}\b`, "Okta SSWS API token", types.SevHigh, "data", nil, 1, nil),
	compile("creds.airtable.pat", `\bpat_[A-Za-z0-9]{14,}\b`, "Airtable personal access token", types.SevMedium, "data", nil, 1, nil),
	compile("creds.linear.api_key", `\blin_api_[A-Za-z0-9]{40}\b`, "Linear API key", types.SevHigh, "data", nil, 1, nil),
	compile("creds.notion.token", `\bsecret_[A-Za-z0-9]{40,}\b`, "Notion integration token", types.SevHigh, "data", nil, 1, nil),
	compile("creds.cloudinary.url", `\bcloudinary://\d{6,}:[A-Za-z0-9_-]{10,}@`, "Cloudinary URL with embedded API secret", types.SevHigh, "data", nil, 1, nil),
	compile("creds.mapbox.token", `\b(?:pk\.[A-Za-z0-9]{50,}|sk\.[A-Za-z0-9]{70,})\b`, "Mapbox access token", types.SevMedium, "data", nil, 1, nil),
	compile("creds.firebase.api_key", `(?i)(?:firebase|apiKey|FIREBASE_)\S{0,40}?[:=]\s*['"]?AIza[0-9A-Za-z_-]{35}['"]?`, "Firebase API key", types.SevMedium, "data", nil, 1, nil),

	// --- generic / structural ---
	compile("creds.jwt", `eyJ[A-Za-z0-9_-]+?\.[A-Za-z0-9._-]+?\.[A-Za-z0-9._-]+`, "JSON Web Token", types.SevMedium, "generic", nil, 1,
		func(c string) bool { return validate.IsJWTStructure(c) }),
	compile("creds.private_key", `-----BEGIN (?:RSA |EC |OPENSSH |DSA |PGP )?PRIVATE KEY-----`, "Embedded private key block", types.SevCritical, "generic", []string{"critical"}, 0, nil),
	compile("creds.generic.sk_prefixed", `\bsk-[A-Za-z0-9]{20,}\b`, "Generic sk- prefixed secret key", types.SevMedium, "generic", []string{"low_risk"}, 1, nil),
	compile("creds.generic.high_entropy_token", `[A-Za-z0-9+/=_-]{20,}`, "High-entropy token-shaped value near a secret keyword", types.SevLow, "generic", []string{"low_risk"}, 1, nil),
}
