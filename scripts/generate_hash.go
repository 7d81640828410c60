//go:build ignore
// +build ignore

// generate_hash.go — утилита для генерации bcrypt-хэша пароля оператора.
// Запуск: go run scripts/generate_hash.go ваш_пароль
//
// Результат вставьте в .env как ADMIN_PASSWORD_HASH.
package main

import (
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Использование: go run scripts/generate_hash.go <пароль>")
		os.Exit(1)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(os.Args[1]), bcrypt.DefaultCost)
	if err != nil {
		fmt.Printf("Ошибка генерации хэша: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Хэш пароля (вставьте в .env как ADMIN_PASSWORD_HASH):")
	fmt.Println(string(hash))
}
