package database

import (
	"fmt"
	"subtitle-fusion/app/config"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/model"
	"subtitle-fusion/app/utils"
)

// InitAdminUser 初始化管理员账户。
// 未配置账号密码时跳过，此时接口不启用鉴权。
func InitAdminUser(cfg *config.Config, log *logger.Logger) error {
	if cfg.Server.Username == "" || cfg.Server.Password == "" {
		log.Warn("未配置管理员账户，接口将不启用鉴权")
		return nil
	}

	// 首先查找是否已存在管理员用户（不管用户名是什么）
	var existingAdmin model.User
	result := DB.Where("is_admin = ?", true).First(&existingAdmin)

	if result.Error == nil {
		// 管理员用户已存在，检查是否需要更新用户名和密码
		needUpdate := false

		// 检查用户名是否需要更新
		if existingAdmin.Username != cfg.Server.Username {
			// 检查新用户名是否已被其他用户使用
			var conflictUser model.User
			conflictResult := DB.Where("username = ? AND id != ?", cfg.Server.Username, existingAdmin.ID).First(&conflictUser)
			if conflictResult.Error == nil {
				return fmt.Errorf("用户名 '%s' 已被其他用户使用，无法更新管理员用户名", cfg.Server.Username)
			}

			oldUsername := existingAdmin.Username
			existingAdmin.Username = cfg.Server.Username
			needUpdate = true
			log.Infof("管理员用户名从 '%s' 更新为 '%s'", oldUsername, cfg.Server.Username)
		}

		// 检查密码是否需要更新
		if !utils.VerifyPassword(cfg.Server.Password, existingAdmin.Password) {
			expectedHash, err := utils.HashPassword(cfg.Server.Password)
			if err != nil {
				return fmt.Errorf("哈希密码失败: %v", err)
			}
			existingAdmin.Password = expectedHash
			needUpdate = true
			log.Infof("管理员 '%s' 密码已更新", cfg.Server.Username)
		}

		// 如果需要更新，保存到数据库
		if needUpdate {
			if err := DB.Save(&existingAdmin).Error; err != nil {
				return fmt.Errorf("更新管理员账户失败: %v", err)
			}
		} else {
			log.Infof("管理员 '%s' 已存在，无需更新", cfg.Server.Username)
		}
		return nil
	}

	// 不存在管理员用户，创建新的管理员用户
	hashedPassword, err := utils.HashPassword(cfg.Server.Password)
	if err != nil {
		return fmt.Errorf("哈希密码失败: %v", err)
	}

	adminUser := model.User{
		Username: cfg.Server.Username,
		Password: hashedPassword,
		IsActive: true,
		IsAdmin:  true,
	}

	if err := DB.Create(&adminUser).Error; err != nil {
		return fmt.Errorf("创建管理员账户失败: %v", err)
	}

	log.Infof("管理员账户 '%s' 创建成功", cfg.Server.Username)
	return nil
}
