package main

// Compiled-in modules. Each registers itself with core.RegisterModule.
import (
	_ "github.com/flemzord/aura/internal/cron"
	_ "github.com/flemzord/aura/internal/gateway"
	_ "github.com/flemzord/aura/modules/provider/ollama"
	_ "github.com/flemzord/aura/modules/provider/openai_compatible"
	_ "github.com/flemzord/aura/modules/store/postgres"
	_ "github.com/flemzord/aura/modules/store/sqlite"
)
