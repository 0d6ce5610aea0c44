package auth

type User struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Bio          string `json:"bio"`
	Image        string `json:"image"`
}

type SettingsInput struct {
	Image           string `json:"image"`
	Bio             string `json:"bio"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}
