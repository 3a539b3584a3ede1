package db

import (
	"errors"

	"gorm.io/gorm"

	"backend/internal/types"
)

type DeviceNameRepository struct {
	db *gorm.DB
}

func NewDeviceNameRepository() *DeviceNameRepository {
	return &DeviceNameRepository{db: DB}
}

// Coordinates 查询特殊教室名对应的矩阵坐标，实现device.NameResolver
func (r *DeviceNameRepository) Coordinates(name string) (types.Zone, bool) {
	var dn DeviceName
	if err := r.db.Where("name = ?", name).First(&dn).Error; err != nil {
		return types.Zone{}, false
	}
	z := types.Zone{Row: dn.Row, Col: dn.Col}
	return z, z.Valid()
}

// Upsert 新增或更新映射
func (r *DeviceNameRepository) Upsert(name string, z types.Zone) error {
	if !z.Valid() {
		return types.NewProtocolError("非法坐标: (%d, %d)", z.Row, z.Col)
	}
	var dn DeviceName
	err := r.db.Where("name = ?", name).First(&dn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.Create(&DeviceName{Name: name, Row: z.Row, Col: z.Col}).Error
	}
	if err != nil {
		return err
	}
	return r.db.Model(&dn).Updates(map[string]interface{}{
		"row": z.Row,
		"col": z.Col,
	}).Error
}

// Delete 删除映射
func (r *DeviceNameRepository) Delete(name string) error {
	result := r.db.Where("name = ?", name).Delete(&DeviceName{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("设备名映射不存在")
	}
	return nil
}

// List 全部映射
func (r *DeviceNameRepository) List() ([]DeviceName, error) {
	var names []DeviceName
	err := r.db.Order("name").Find(&names).Error
	return names, err
}
