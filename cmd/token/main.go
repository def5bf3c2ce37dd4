package main

import (
	"flag"
	"fmt"
	log "log/slog"
	"os"

	"Ephemera/internal/api/config"
	"Ephemera/internal/pkg/security"
)

// 为本地联调签发用户 token，签名参数与服务端配置一致
func main() {
	userID := flag.Uint64("user", 0, "user id to issue a token for")
	flag.Parse()
	if *userID == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := config.LoadConfig(); err != nil {
		log.Error("Fatal error: failed to load configuration", "err", err)
		panic(err)
	}
	security.Configure(config.Cfg.JWT.Secret, config.Cfg.JWT.Issuer, config.Cfg.JWT.TTL)

	token, err := security.GenerateToken(*userID)
	if err != nil {
		log.Error("Fatal error: failed to sign token", "err", err)
		panic(err)
	}
	fmt.Println(token)
}
