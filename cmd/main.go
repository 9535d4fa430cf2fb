// cmd/main.go
package main

import (
	"go-draw-api/app"
)

// @title           Go-Draw API
// @version         1.0
// @description     Accounts and session tokens for a social drawing platform.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app.Run()
}
