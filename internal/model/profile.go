// Package model はドメインモデルを定義する。
package model

import "time"

// Profile はポータルアプリケーションが所有するユーザープロフィールを表す。
// usersテーブルと1:1で対応し（profiles.id = users.id）、
// game_progressの外部キー参照先となる。
// プロフィール行が存在しない限り、同一ユーザーの進捗レコードは書き込めない。
type Profile struct {
	ID        string // users.idへの外部キー
	Email     string
	Username  string // UNIQUE制約
	FirstName string
	LastName  string
	UpdatedAt time.Time
}
