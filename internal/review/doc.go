// Package review は書籍レビューサービスを提供する。
// レビューのCRUDと、評価戦略を切り替えられる平均評価の算出を行う。
package review
