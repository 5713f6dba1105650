package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	AssemblyAIKey string

	CerebrasKey     string
	CerebrasModelID string

	DeepgramKey   string
	DeepgramModel string

	SupabaseURL            string
	SupabaseAnonKey        string
	SupabaseServiceRoleKey string

	TwilioAccountSID string
	TwilioAuthToken  string

	TemplatesPath string
	DevUserID     string
}

// Load reads environment variables and returns Config with sane defaults.
// Missing provider keys are warnings, not errors: each subsystem degrades to
// its simulated or in-memory fallback.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	assemblyAIKey := os.Getenv("ASSEMBLYAI_API_KEY")
	if assemblyAIKey == "" {
		log.Println("Warning: ASSEMBLYAI_API_KEY not set - speech input runs simulated")
	}

	cerebrasKey := os.Getenv("CEREBRAS_API_KEY")
	cerebrasModel := os.Getenv("CEREBRAS_MODEL_ID")
	if cerebrasModel == "" {
		cerebrasModel = "gpt-oss-120b"
	}
	if cerebrasKey == "" {
		log.Println("Warning: CEREBRAS_API_KEY not set - question generation and scoring will not work")
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if deepgramKey == "" {
		log.Println("Warning: DEEPGRAM_API_KEY not set - speech output runs simulated")
	}
	deepgramModel := os.Getenv("DEEPGRAM_TTS_MODEL")
	if deepgramModel == "" {
		deepgramModel = "aura-2-thalia-en"
	}

	supabaseURL := os.Getenv("SUPABASE_URL")
	if supabaseURL == "" {
		log.Println("Warning: SUPABASE_URL not set - records stay in memory, auth accepts any token")
	}

	templates := os.Getenv("TEMPLATES_PATH")
	if templates == "" {
		templates = "config/templates.yaml"
	}

	devUser := os.Getenv("DEV_USER_ID")
	if devUser == "" {
		devUser = "dev-user"
	}

	log.Printf("config: HTTP_ADDRESS=%s", addr)
	return Config{
		HTTPAddress:            addr,
		AssemblyAIKey:          assemblyAIKey,
		CerebrasKey:            cerebrasKey,
		CerebrasModelID:        cerebrasModel,
		DeepgramKey:            deepgramKey,
		DeepgramModel:          deepgramModel,
		SupabaseURL:            supabaseURL,
		SupabaseAnonKey:        os.Getenv("SUPABASE_ANON_KEY"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		TwilioAccountSID:       os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:        os.Getenv("TWILIO_AUTH_TOKEN"),
		TemplatesPath:          templates,
		DevUserID:              devUser,
	}
}
